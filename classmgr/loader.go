package classmgr

import (
	"errors"
	"fmt"
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/singleflight"
)

// ClassSource supplies raw class images by internal name.
type ClassSource interface {
	ReadClass(name string) ([]byte, error)
}

// ClassLoader defines types from a ClassSource and keeps the one *Type per
// name it has published. A type is visible to LoadClass only after its decode
// has completed, and decoding never resolves references, so loading a class
// never waits on another load.
type ClassLoader struct {
	source  ClassSource
	decoder *Decoder
	types   cmap.ConcurrentMap[string, *Type]
	group   singleflight.Group
}

func NewClassLoader(source ClassSource, decoder *Decoder) *ClassLoader {
	return &ClassLoader{
		source:  source,
		decoder: decoder,
		types:   cmap.New[*Type](),
	}
}

// LoadClass returns the type named name, reading and decoding it on first use.
// Concurrent first loads of one name share a single decode.
func (l *ClassLoader) LoadClass(name string) (*Type, error) {
	if t, ok := l.types.Get(name); ok {
		return t, nil
	}
	v, err, _ := l.group.Do(name, func() (any, error) {
		if t, ok := l.types.Get(name); ok {
			return t, nil
		}
		if l.source == nil {
			return nil, linkageError(ErrNoClassDefFound, name, fmt.Errorf("no class source"))
		}
		data, err := l.source.ReadClass(name)
		if err != nil {
			log.Warningf("cannot read class %s: %s", name, err)
			return nil, linkageError(ErrNoClassDefFound, name, err)
		}
		t, err := l.define(name, data)
		if errors.Is(err, ErrDuplicateClass) {
			// a DefineClass published name while this load was reading
			if t, ok := l.types.Get(name); ok {
				return t, nil
			}
		}
		return t, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*Type), nil
}

// DefineClass decodes data and publishes the result under name. It fails if
// the image declares a different name or name is already defined, including
// by a LoadClass that finishes first.
func (l *ClassLoader) DefineClass(name string, data []byte) (*Type, error) {
	return l.define(name, data)
}

func (l *ClassLoader) define(name string, data []byte) (*Type, error) {
	if l.types.Has(name) {
		return nil, linkageError(ErrDuplicateClass, name, nil)
	}
	t, err := l.decoder.Decode(data, 0, len(data), l)
	if err != nil {
		log.Warningf("cannot define class %s: %s", name, err)
		return nil, err
	}
	if t.Name != name {
		return nil, linkageError(ErrNoClassDefFound, name, fmt.Errorf("image declares %s", t.Name))
	}
	if !l.types.SetIfAbsent(name, t) {
		return nil, linkageError(ErrDuplicateClass, name, nil)
	}
	log.Infof("defined %s", t)
	return t, nil
}

// FindLoaded returns an already published type without loading.
func (l *ClassLoader) FindLoaded(name string) (*Type, bool) {
	return l.types.Get(name)
}

// Types returns every published type sorted by name.
func (l *ClassLoader) Types() []*Type {
	types := make([]*Type, 0, l.types.Count())
	for item := range l.types.IterBuffered() {
		types = append(types, item.Val)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types
}
