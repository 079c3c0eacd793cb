package classmgr

import (
	"fmt"

	"github.com/dhamidi/jload/classfile"
)

type TypeKind uint8

const (
	NormalType TypeKind = iota
	InterfaceType
)

func (k TypeKind) String() string {
	if k == InterfaceType {
		return "interface"
	}
	return "class"
}

type Version struct {
	Major uint16
	Minor uint16
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Type is a decoded class or interface. It is filled in by the decoder and
// must not be modified once published by a ClassLoader.
type Type struct {
	Name       string
	SuperName  string // empty only for the root type
	Kind       TypeKind
	Modifiers  classfile.AccessFlags
	Version    Version
	CP         *ConstantPool
	Interfaces []string
	Fields     []*Field
	Methods    []*Method

	// ObjectSize is the size in bytes of the fields this type declares,
	// before the super-class size is added. Always 0 for interfaces.
	ObjectSize int

	// Loader tags the type with the identity of the loader that defined it.
	Loader any

	super  resolution[*Type]
	ifaces []resolution[*Type]
}

func (t *Type) IsInterface() bool { return t.Kind == InterfaceType }

func (t *Type) String() string {
	return t.Kind.String() + " " + classfile.InternalToSourceName(t.Name)
}

func (t *Type) DeclaredField(name, descriptor string) *Field {
	for _, f := range t.Fields {
		if f.Name == name && (descriptor == "" || f.Descriptor == descriptor) {
			return f
		}
	}
	return nil
}

func (t *Type) DeclaredMethod(name, descriptor string) *Method {
	for _, m := range t.Methods {
		if m.Name == name && (descriptor == "" || m.Descriptor == descriptor) {
			return m
		}
	}
	return nil
}

// Super returns the loaded super-class, or nil for the root type.
func (t *Type) Super(l ClassResolver) (*Type, error) {
	if t.SuperName == "" {
		return nil, nil
	}
	return t.super.resolve(func() (*Type, error) {
		s, err := l.LoadClass(t.SuperName)
		if err != nil {
			return nil, linkageError(ErrNoClassDefFound, t.SuperName, err)
		}
		return s, nil
	})
}

// Interface returns the i-th direct super-interface, loaded.
func (t *Type) Interface(l ClassResolver, i int) (*Type, error) {
	name := t.Interfaces[i]
	return t.ifaces[i].resolve(func() (*Type, error) {
		s, err := l.LoadClass(name)
		if err != nil {
			return nil, linkageError(ErrNoClassDefFound, name, err)
		}
		if !s.IsInterface() {
			return nil, linkageError(ErrIncompatibleClassChange, name,
				fmt.Errorf("%s implements %s, which is not an interface", t.Name, name))
		}
		return s, nil
	})
}

// superChain returns t followed by its super-classes up to the root.
func (t *Type) superChain(l ClassResolver) ([]*Type, error) {
	seen := make(map[*Type]bool)
	var chain []*Type
	for c := t; c != nil; {
		if seen[c] {
			return nil, linkageError(ErrClassCircularity, t.Name, nil)
		}
		seen[c] = true
		chain = append(chain, c)
		s, err := c.Super(l)
		if err != nil {
			return nil, err
		}
		c = s
	}
	return chain, nil
}

// LookupMethod searches t, then its super-classes, then the super-interfaces
// of each in declaration order. It returns nil, nil when nothing matches.
// For an interface the only super-class methods considered are the public
// instance methods of the root type.
func (t *Type) LookupMethod(l ClassResolver, name, descriptor string) (*Method, error) {
	chain, err := t.superChain(l)
	if err != nil {
		return nil, err
	}
	for _, c := range chain {
		m := c.DeclaredMethod(name, descriptor)
		if m == nil {
			continue
		}
		if t.IsInterface() && c != t && (!m.Modifiers.IsPublic() || m.Modifiers.IsStatic()) {
			continue
		}
		return m, nil
	}
	seen := make(map[*Type]bool)
	for _, c := range chain {
		m, err := c.lookupInterfaceMethod(l, name, descriptor, seen)
		if err != nil || m != nil {
			return m, err
		}
	}
	return nil, nil
}

func (t *Type) lookupInterfaceMethod(l ClassResolver, name, descriptor string, seen map[*Type]bool) (*Method, error) {
	for i := range t.Interfaces {
		iface, err := t.Interface(l, i)
		if err != nil {
			return nil, err
		}
		if seen[iface] {
			continue
		}
		seen[iface] = true
		if m := iface.DeclaredMethod(name, descriptor); m != nil {
			return m, nil
		}
		m, err := iface.lookupInterfaceMethod(l, name, descriptor, seen)
		if err != nil || m != nil {
			return m, err
		}
	}
	return nil, nil
}

// LookupField searches t, then its super-interfaces, then its super-class,
// recursively. An interface searches only its super-interfaces. It returns
// nil, nil when nothing matches.
func (t *Type) LookupField(l ClassResolver, name, descriptor string) (*Field, error) {
	seen := make(map[*Type]bool)
	if t.IsInterface() {
		if f := t.DeclaredField(name, descriptor); f != nil {
			return f, nil
		}
		return t.lookupInterfaceField(l, name, descriptor, seen)
	}
	chain, err := t.superChain(l)
	if err != nil {
		return nil, err
	}
	for _, c := range chain {
		if f := c.DeclaredField(name, descriptor); f != nil {
			return f, nil
		}
		f, err := c.lookupInterfaceField(l, name, descriptor, seen)
		if err != nil || f != nil {
			return f, err
		}
	}
	return nil, nil
}

func (t *Type) lookupInterfaceField(l ClassResolver, name, descriptor string, seen map[*Type]bool) (*Field, error) {
	for i := range t.Interfaces {
		iface, err := t.Interface(l, i)
		if err != nil {
			return nil, err
		}
		if seen[iface] {
			continue
		}
		seen[iface] = true
		if f := iface.DeclaredField(name, descriptor); f != nil {
			return f, nil
		}
		f, err := iface.lookupInterfaceField(l, name, descriptor, seen)
		if err != nil || f != nil {
			return f, err
		}
	}
	return nil, nil
}
