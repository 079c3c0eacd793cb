package classmgr

import "github.com/dhamidi/jload/classfile"

type MethodKind uint8

const (
	StaticMethod MethodKind = iota
	SpecialMethod
	InstanceMethod
)

func (k MethodKind) String() string {
	switch k {
	case StaticMethod:
		return "static"
	case SpecialMethod:
		return "special"
	default:
		return "instance"
	}
}

// Method is a declared method. Every method owns a method slot in the statics
// table; only instance methods carry a dispatch selector.
type Method struct {
	Name       string
	Descriptor string
	Modifiers  classfile.AccessFlags
	Kind       MethodKind

	// ArgSlots counts argument slots including the receiver of non-static
	// methods.
	ArgSlots int

	Slot       int
	Selector   int
	Bytecode   *Bytecode
	Exceptions []*ConstClass
	Declarer   *Type
}

func (m *Method) IsNative() bool   { return m.Modifiers.IsNative() }
func (m *Method) IsAbstract() bool { return m.Modifiers.IsAbstract() }

func (m *Method) String() string {
	return m.Declarer.Name + "." + m.Name + m.Descriptor
}

func classifyMethod(name string, flags classfile.AccessFlags) MethodKind {
	switch {
	case name == classfile.ConstructorName:
		return SpecialMethod
	case flags.IsStatic():
		return StaticMethod
	default:
		return InstanceMethod
	}
}
