package classmgr

import (
	"github.com/dhamidi/jload/classfile"
	"github.com/dhamidi/jload/statics"
)

type FieldKind uint8

const (
	InstanceField FieldKind = iota
	StaticField
)

func (k FieldKind) String() string {
	if k == StaticField {
		return "static"
	}
	return "instance"
}

// Field is a declared field. An instance field carries Offset, relative to
// the start of the declaring type's own fields; a static field carries Slot
// in the statics table. The other one is -1.
type Field struct {
	Name       string
	Descriptor string
	Modifiers  classfile.AccessFlags
	Kind       FieldKind
	Offset     int
	Slot       int
	SlotKind   statics.Kind
	Declarer   *Type

	// constant is the ConstantValue entry waiting to be written into Slot.
	constant Const
}

func (f *Field) IsStatic() bool { return f.Kind == StaticField }

func (f *Field) IsWide() bool { return classfile.IsWideDescriptor(f.Descriptor) }

// Size is the number of bytes the field takes in an object: 8 for long and
// double, 4 for everything else.
func (f *Field) Size() int {
	if f.IsWide() {
		return 8
	}
	return 4
}

func (f *Field) String() string {
	return f.Declarer.Name + "." + f.Name + ":" + f.Descriptor
}
