package classmgr

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dhamidi/jload/classfile"
)

// ClassResolver loads a class by internal name. *ClassLoader implements it.
type ClassResolver interface {
	LoadClass(name string) (*Type, error)
}

type State uint32

const (
	Unresolved State = iota
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unresolved"
	}
}

// resolution is the cache behind every symbolic reference. It leaves the
// Unresolved state exactly once. Concurrent first callers wait for the one
// that runs fn and then see its outcome, success or failure, forever.
type resolution[T any] struct {
	state atomic.Uint32
	mu    sync.Mutex
	value T
	err   error
}

func (r *resolution[T]) State() State {
	return State(r.state.Load())
}

func (r *resolution[T]) resolve(fn func() (T, error)) (T, error) {
	if r.state.Load() != uint32(Unresolved) {
		return r.value, r.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Load() != uint32(Unresolved) {
		return r.value, r.err
	}
	r.value, r.err = fn()
	if r.err != nil {
		r.state.Store(uint32(Failed))
	} else {
		r.state.Store(uint32(Resolved))
	}
	return r.value, r.err
}

func (c *ConstClass) State() State { return c.link.State() }

// Resolve returns the loaded type this entry names, loading it through l on
// first use.
func (c *ConstClass) Resolve(l ClassResolver) (*Type, error) {
	return c.link.resolve(func() (*Type, error) {
		t, err := l.LoadClass(c.Name)
		if err != nil {
			log.Warningf("cannot resolve class %s: %s", c.Name, err)
			return nil, linkageError(ErrNoClassDefFound, c.Name, err)
		}
		log.Debugf("resolved class %s", c.Name)
		return t, nil
	})
}

func (f *ConstFieldRef) State() State { return f.link.State() }

func (f *ConstFieldRef) Resolve(l ClassResolver) (*Field, error) {
	return f.link.resolve(func() (*Field, error) {
		cls, err := f.Class.Resolve(l)
		if err != nil {
			return nil, err
		}
		field, err := cls.LookupField(l, f.Name, f.Descriptor)
		if err != nil {
			return nil, err
		}
		if field == nil {
			return nil, linkageError(ErrNoSuchField, f.String(), nil)
		}
		return field, nil
	})
}

func (m *ConstMethodRef) State() State { return m.link.State() }

func (m *ConstMethodRef) Resolve(l ClassResolver) (*Method, error) {
	return m.link.resolve(func() (*Method, error) {
		cls, err := m.Class.Resolve(l)
		if err != nil {
			return nil, err
		}
		if cls.IsInterface() {
			return nil, linkageError(ErrIncompatibleClassChange, m.String(),
				fmt.Errorf("%s is an interface", cls.Name))
		}
		method, err := cls.LookupMethod(l, m.Name, m.Descriptor)
		if err != nil {
			return nil, err
		}
		if method == nil {
			return nil, linkageError(ErrNoSuchMethod, m.String(), nil)
		}
		return method, nil
	})
}

func (m *ConstIMethodRef) State() State { return m.link.State() }

// Resolve binds the reference to a method of an interface. The target class
// must have been decoded as an interface.
func (m *ConstIMethodRef) Resolve(l ClassResolver) (*Method, error) {
	return m.link.resolve(func() (*Method, error) {
		cls, err := m.Class.Resolve(l)
		if err != nil {
			return nil, err
		}
		if !cls.IsInterface() {
			return nil, linkageError(ErrIncompatibleClassChange, m.String(),
				fmt.Errorf("%s must be an interface", cls.Name))
		}
		method, err := cls.LookupMethod(l, m.Name, m.Descriptor)
		if err != nil {
			return nil, err
		}
		if method == nil {
			return nil, linkageError(ErrNoSuchMethod, m.String(), nil)
		}
		m.selector = method.Selector
		return method, nil
	})
}

// Selector is the dispatch selector of the resolved method, or -1 before a
// successful resolution.
func (m *ConstIMethodRef) Selector() int {
	if m.link.State() != Resolved {
		return -1
	}
	return m.selector
}

// Resolve resolves the symbolic entry at index: a class yields *Type, a field
// ref *Field, a method or interface-method ref *Method. Literal entries are
// not symbolic and yield a ClassFormatError, as do unaddressable indices.
func (cp *ConstantPool) Resolve(l ClassResolver, index int) (any, error) {
	e, err := cp.Entry(index)
	if err != nil {
		return nil, err
	}
	switch e := e.(type) {
	case *ConstClass:
		return e.Resolve(l)
	case *ConstFieldRef:
		return e.Resolve(l)
	case *ConstMethodRef:
		return e.Resolve(l)
	case *ConstIMethodRef:
		return e.Resolve(l)
	default:
		return nil, classfile.Errorf(classfile.ErrInvalidIndex, "index %d is a %s entry, not a symbolic reference", index, e.Tag())
	}
}
