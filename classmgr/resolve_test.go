package classmgr

import (
	"errors"
	"sync"
	"testing"

	"github.com/dhamidi/jload/classfile"
	"github.com/dhamidi/jload/classfile/classgen"
	"github.com/dhamidi/jload/selector"
	"github.com/dhamidi/jload/statics"
)

// world is a small class graph:
//
//	java/lang/Object
//	demo/Named   interface        name()
//	demo/Shape   interface        area(), ORIGIN
//	demo/Base    extends Object   implements Named; id, name()
//	demo/Circle  extends Base     implements Shape; radius, area()
//	demo/Client  holds the references under test
type world struct {
	loader *ClassLoader
	source *memSource
	sel    *selector.Registry
	client *Type
	refs   map[string]int
}

func newWorld(t *testing.T) *world {
	t.Helper()
	src := newMemSource()
	src.add("java/lang/Object", objectClass())

	named := interfaceClass("demo/Named")
	named.Method(pub|abstract, "name", "()Ljava/lang/String;")
	src.add("demo/Named", named)

	shape := interfaceClass("demo/Shape")
	shape.Field(pub|static|final, "ORIGIN", "I", shape.ConstantValue(shape.Int(0)))
	shape.Method(pub|abstract, "area", "()D")
	src.add("demo/Shape", shape)

	base := classgen.New("demo/Base", "java/lang/Object").Interface("demo/Named")
	base.Field(pub, "id", "I")
	base.Method(pub, "name", "()Ljava/lang/String;")
	src.add("demo/Base", base)

	circle := classgen.New("demo/Circle", "demo/Base").Interface("demo/Shape")
	circle.Field(pub, "radius", "D")
	circle.Method(pub, "area", "()D")
	src.add("demo/Circle", circle)

	client := classgen.New("demo/Client", "java/lang/Object")
	refs := map[string]int{
		"class Circle":             int(client.Class("demo/Circle")),
		"class Missing":            int(client.Class("demo/Missing")),
		"Circle.area":              int(client.Methodref("demo/Circle", "area", "()D")),
		"Circle.hashCode":          int(client.Methodref("demo/Circle", "hashCode", "()I")),
		"Circle.name":              int(client.Methodref("demo/Circle", "name", "()Ljava/lang/String;")),
		"Circle.missing":           int(client.Methodref("demo/Circle", "missing", "()V")),
		"Shape.area as method":     int(client.Methodref("demo/Shape", "area", "()D")),
		"Shape.area":               int(client.InterfaceMethodref("demo/Shape", "area", "()D")),
		"Shape.hashCode":           int(client.InterfaceMethodref("demo/Shape", "hashCode", "()I")),
		"Circle.area as interface": int(client.InterfaceMethodref("demo/Circle", "area", "()D")),
		"Missing.run":              int(client.InterfaceMethodref("demo/Missing", "run", "()V")),
		"Circle.id":                int(client.Fieldref("demo/Circle", "id", "I")),
		"Circle.radius":            int(client.Fieldref("demo/Circle", "radius", "D")),
		"Circle.ORIGIN":            int(client.Fieldref("demo/Circle", "ORIGIN", "I")),
		"Circle.nope":              int(client.Fieldref("demo/Circle", "nope", "I")),
		"Circle.id as long":        int(client.Fieldref("demo/Circle", "id", "J")),
		"string":                   int(client.String("text")),
		"int":                      int(client.Int(5)),
	}
	src.add("demo/Client", client)

	sel := selector.NewRegistry()
	loader := NewClassLoader(src, NewDecoder(statics.NewTable(), sel))
	typ, err := loader.LoadClass("demo/Client")
	if err != nil {
		t.Fatalf("LoadClass(demo/Client): %v", err)
	}
	return &world{loader: loader, source: src, sel: sel, client: typ, refs: refs}
}

func (w *world) resolve(t *testing.T, ref string) (any, error) {
	t.Helper()
	index, ok := w.refs[ref]
	if !ok {
		t.Fatalf("unknown ref %q", ref)
	}
	return w.client.CP.Resolve(w.loader, index)
}

func TestResolveMembers(t *testing.T) {
	w := newWorld(t)

	tests := []struct {
		ref      string
		declarer string
	}{
		{"Circle.area", "demo/Circle"},
		{"Circle.hashCode", "java/lang/Object"},
		{"Circle.name", "demo/Base"},
		{"Shape.area", "demo/Shape"},
		{"Shape.hashCode", "java/lang/Object"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			v, err := w.resolve(t, tt.ref)
			if err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			m, ok := v.(*Method)
			if !ok {
				t.Fatalf("resolved to %T, want *Method", v)
			}
			if m.Declarer.Name != tt.declarer {
				t.Errorf("declarer = %s, want %s", m.Declarer.Name, tt.declarer)
			}
		})
	}

	fields := []struct {
		ref      string
		declarer string
		static   bool
	}{
		{"Circle.id", "demo/Base", false},
		{"Circle.radius", "demo/Circle", false},
		{"Circle.ORIGIN", "demo/Shape", true},
	}
	for _, tt := range fields {
		t.Run(tt.ref, func(t *testing.T) {
			v, err := w.resolve(t, tt.ref)
			if err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			f, ok := v.(*Field)
			if !ok {
				t.Fatalf("resolved to %T, want *Field", v)
			}
			if f.Declarer.Name != tt.declarer || f.IsStatic() != tt.static {
				t.Errorf("field = %s static %v, want declared by %s static %v", f, f.IsStatic(), tt.declarer, tt.static)
			}
		})
	}
}

func TestResolveFailures(t *testing.T) {
	w := newWorld(t)

	tests := []struct {
		ref  string
		kind error
	}{
		{"class Missing", ErrNoClassDefFound},
		{"Missing.run", ErrNoClassDefFound},
		{"Circle.missing", ErrNoSuchMethod},
		{"Circle.nope", ErrNoSuchField},
		{"Circle.id as long", ErrNoSuchField},
		{"Circle.area as interface", ErrIncompatibleClassChange},
		{"Shape.area as method", ErrIncompatibleClassChange},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			v, err := w.resolve(t, tt.ref)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want %v", err, tt.kind)
			}
			if !errors.Is(err, ErrLinkage) {
				t.Errorf("err = %v, want it to match ErrLinkage", err)
			}
			if errors.Is(err, classfile.ErrClassFormat) {
				t.Errorf("err = %v, should not be a ClassFormatError", err)
			}
			var le *LinkageError
			if !errors.As(err, &le) || le.Ref == "" {
				t.Errorf("err = %v, want a *LinkageError naming the reference", err)
			}
			switch v := v.(type) {
			case *Method:
				if v != nil {
					t.Errorf("resolved to %v alongside error", v)
				}
			case *Field:
				if v != nil {
					t.Errorf("resolved to %v alongside error", v)
				}
			case *Type:
				if v != nil {
					t.Errorf("resolved to %v alongside error", v)
				}
			}
		})
	}
}

func TestResolveNonSymbolic(t *testing.T) {
	w := newWorld(t)
	for _, ref := range []string{"string", "int"} {
		if _, err := w.resolve(t, ref); !errors.Is(err, classfile.ErrClassFormat) {
			t.Errorf("%s: err = %v, want ClassFormatError", ref, err)
		}
	}
}

func TestResolveClassOnce(t *testing.T) {
	w := newWorld(t)
	ref, err := w.client.CP.Class(w.refs["class Circle"])
	if err != nil {
		t.Fatal(err)
	}
	if ref.State() != Unresolved {
		t.Fatalf("State = %s before resolution", ref.State())
	}

	counter := &countingResolver{l: w.loader}
	results := make([]*Type, 32)
	var wg sync.WaitGroup
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			typ, err := ref.Resolve(counter)
			if err != nil {
				t.Errorf("Resolve failed: %v", err)
				return
			}
			results[i] = typ
		}()
	}
	wg.Wait()

	for i, typ := range results {
		if typ != results[0] {
			t.Fatalf("result %d = %p, want %p", i, typ, results[0])
		}
	}
	if n := counter.calls.Load(); n != 1 {
		t.Errorf("LoadClass calls = %d, want 1", n)
	}
	if again, _ := ref.Resolve(counter); again != results[0] || counter.calls.Load() != 1 {
		t.Errorf("sequential resolve reloaded the class")
	}
	if ref.State() != Resolved {
		t.Errorf("State = %s, want resolved", ref.State())
	}
	if w.source.readCount("demo/Circle") != 1 {
		t.Errorf("demo/Circle read %d times, want 1", w.source.readCount("demo/Circle"))
	}
}

func TestResolveIMethodRefOnce(t *testing.T) {
	w := newWorld(t)
	ref, err := w.client.CP.IMethodRef(w.refs["Shape.area"])
	if err != nil {
		t.Fatal(err)
	}
	if ref.Selector() != -1 {
		t.Errorf("Selector() before resolution = %d, want -1", ref.Selector())
	}

	counter := &countingResolver{l: w.loader}
	results := make([]*Method, 16)
	var wg sync.WaitGroup
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := ref.Resolve(counter)
			if err != nil {
				t.Errorf("Resolve failed: %v", err)
				return
			}
			results[i] = m
		}()
	}
	wg.Wait()

	calls := counter.calls.Load()
	for i, m := range results {
		if m != results[0] {
			t.Fatalf("result %d differs", i)
		}
	}
	if _, err := ref.Resolve(counter); err != nil || counter.calls.Load() != calls {
		t.Errorf("second resolve: err %v, calls %d -> %d", err, calls, counter.calls.Load())
	}
	if want := w.sel.Lookup("area", "()D"); ref.Selector() != want || want < 0 {
		t.Errorf("Selector() = %d, want %d", ref.Selector(), want)
	}
}

func TestIMethodRefOnClassFailsOnce(t *testing.T) {
	w := newWorld(t)
	ref, err := w.client.CP.IMethodRef(w.refs["Circle.area as interface"])
	if err != nil {
		t.Fatal(err)
	}

	counter := &countingResolver{l: w.loader}
	m, err := ref.Resolve(counter)
	if !errors.Is(err, ErrIncompatibleClassChange) {
		t.Fatalf("err = %v, want ErrIncompatibleClassChange", err)
	}
	if m != nil {
		t.Errorf("resolved method %v despite error", m)
	}
	calls := counter.calls.Load()

	m2, err2 := ref.Resolve(counter)
	if err2 != err || m2 != nil {
		t.Errorf("second resolve = %v, %v; want the cached error", m2, err2)
	}
	if counter.calls.Load() != calls {
		t.Errorf("second resolve ran again: calls %d -> %d", calls, counter.calls.Load())
	}
	if ref.State() != Failed || ref.Selector() != -1 {
		t.Errorf("State = %s selector %d, want failed -1", ref.State(), ref.Selector())
	}

	// the failure does not poison the type or other references to it
	cls, err := w.client.CP.Class(w.refs["class Circle"])
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cls.Resolve(w.loader); err != nil {
		t.Errorf("class Circle after failed member ref: %v", err)
	}
}

func TestClassCircularity(t *testing.T) {
	src := newMemSource()
	src.add("demo/A", classgen.New("demo/A", "demo/B"))
	src.add("demo/B", classgen.New("demo/B", "demo/A"))
	loader := NewClassLoader(src, NewDecoder(statics.NewTable(), selector.NewRegistry()))

	a, err := loader.LoadClass("demo/A")
	if err != nil {
		t.Fatalf("LoadClass: %v", err)
	}
	if _, err := a.LookupMethod(loader, "m", "()V"); !errors.Is(err, ErrClassCircularity) {
		t.Errorf("LookupMethod: err = %v, want ErrClassCircularity", err)
	}
	if _, err := a.LookupField(loader, "f", "I"); !errors.Is(err, ErrClassCircularity) {
		t.Errorf("LookupField: err = %v, want ErrClassCircularity", err)
	}
}

func TestSuperInterfaceMustBeInterface(t *testing.T) {
	src := newMemSource()
	src.add("java/lang/Object", objectClass())
	src.add("demo/Plain", classgen.New("demo/Plain", "java/lang/Object"))
	src.add("demo/Wrong", classgen.New("demo/Wrong", "java/lang/Object").Interface("demo/Plain"))
	loader := NewClassLoader(src, NewDecoder(statics.NewTable(), selector.NewRegistry()))

	wrong, err := loader.LoadClass("demo/Wrong")
	if err != nil {
		t.Fatalf("LoadClass: %v", err)
	}
	if _, err := wrong.Interface(loader, 0); !errors.Is(err, ErrIncompatibleClassChange) {
		t.Errorf("Interface(0): err = %v, want ErrIncompatibleClassChange", err)
	}
	if _, err := wrong.LookupField(loader, "x", "I"); !errors.Is(err, ErrIncompatibleClassChange) {
		t.Errorf("LookupField: err = %v, want ErrIncompatibleClassChange", err)
	}
}

func TestSuperMissing(t *testing.T) {
	src := newMemSource()
	src.add("demo/Orphan", classgen.New("demo/Orphan", "demo/Gone"))
	loader := NewClassLoader(src, NewDecoder(statics.NewTable(), selector.NewRegistry()))

	orphan, err := loader.LoadClass("demo/Orphan")
	if err != nil {
		t.Fatalf("LoadClass: %v", err)
	}
	_, err = orphan.Super(loader)
	if !errors.Is(err, ErrNoClassDefFound) {
		t.Fatalf("Super: err = %v, want ErrNoClassDefFound", err)
	}
	if _, again := orphan.Super(loader); again != err {
		t.Errorf("second Super returned a different error: %v", again)
	}
	if n := src.readCount("demo/Gone"); n != 1 {
		t.Errorf("demo/Gone read %d times, want 1", n)
	}
}

func TestInterfaceLookupOnRootType(t *testing.T) {
	object := classgen.New("java/lang/Object", "")
	object.Method(pub, "hashCode", "()I")
	object.Method(classfile.AccProtected, "clone", "()Ljava/lang/Object;")
	object.Method(pub|static, "registerNatives", "()V")

	src := newMemSource()
	src.add("java/lang/Object", object)
	src.add("demo/Marker", interfaceClass("demo/Marker"))
	src.add("demo/Impl", classgen.New("demo/Impl", "java/lang/Object").Interface("demo/Marker"))
	loader := newTestLoader(src)

	marker, err := loader.LoadClass("demo/Marker")
	if err != nil {
		t.Fatal(err)
	}
	impl, err := loader.LoadClass("demo/Impl")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		typ   *Type
		name  string
		found bool
	}{
		{marker, "hashCode", true},
		{marker, "clone", false},
		{marker, "registerNatives", false},
		{impl, "clone", true},
		{impl, "registerNatives", true},
	}
	for _, tt := range tests {
		m, err := tt.typ.LookupMethod(loader, tt.name, "")
		if err != nil {
			t.Errorf("%s.%s: %v", tt.typ.Name, tt.name, err)
			continue
		}
		if (m != nil) != tt.found {
			t.Errorf("%s.%s found = %v, want %v", tt.typ.Name, tt.name, m != nil, tt.found)
		}
	}

	for _, typ := range []*Type{marker, impl} {
		f, err := typ.LookupField(loader, "missing", "I")
		if err != nil || f != nil {
			t.Errorf("%s.LookupField(missing) = %v, %v; want nil, nil", typ.Name, f, err)
		}
	}
}
