package classmgr

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dhamidi/jload/classfile"
	"github.com/dhamidi/jload/classfile/classgen"
	"github.com/dhamidi/jload/selector"
	"github.com/dhamidi/jload/statics"
)

const (
	pub      = classfile.AccPublic
	static   = classfile.AccStatic
	final    = classfile.AccFinal
	abstract = classfile.AccAbstract
)

type memSource struct {
	mu      sync.Mutex
	classes map[string][]byte
	reads   map[string]int
}

func newMemSource() *memSource {
	return &memSource{classes: make(map[string][]byte), reads: make(map[string]int)}
}

func (s *memSource) add(name string, b *classgen.Builder) {
	s.classes[name] = b.Bytes()
}

func (s *memSource) ReadClass(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[name]++
	data, ok := s.classes[name]
	if !ok {
		return nil, fmt.Errorf("%s: not found", name)
	}
	return data, nil
}

func (s *memSource) readCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[name]
}

// countingResolver counts LoadClass calls made through it.
type countingResolver struct {
	l     ClassResolver
	calls atomic.Int32
}

func (c *countingResolver) LoadClass(name string) (*Type, error) {
	c.calls.Add(1)
	return c.l.LoadClass(name)
}

func newTestDecoder(opts ...Option) (*Decoder, *statics.Table, *selector.Registry) {
	st := statics.NewTable()
	sel := selector.NewRegistry()
	return NewDecoder(st, sel, opts...), st, sel
}

func decode(t *testing.T, d *Decoder, b *classgen.Builder) *Type {
	t.Helper()
	data := b.Bytes()
	typ, err := d.Decode(data, 0, len(data), nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return typ
}

func objectClass() *classgen.Builder {
	b := classgen.New("java/lang/Object", "")
	b.Method(pub, "<init>", "()V")
	b.Method(pub, "hashCode", "()I")
	b.Method(pub, "toString", "()Ljava/lang/String;")
	return b
}

func interfaceClass(name string, supers ...string) *classgen.Builder {
	b := classgen.New(name, "java/lang/Object")
	b.Flags = pub | classfile.AccInterface | abstract
	for _, s := range supers {
		b.Interface(s)
	}
	return b
}
