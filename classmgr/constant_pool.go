package classmgr

import (
	"fmt"
	"math"

	"github.com/dhamidi/jload/classfile"
)

type Const interface {
	Tag() classfile.ConstantTag
}

type ConstUtf8 struct {
	Value string
}

func (c *ConstUtf8) Tag() classfile.ConstantTag { return classfile.ConstantUtf8 }

type ConstInt struct {
	Value int32
}

func (c *ConstInt) Tag() classfile.ConstantTag { return classfile.ConstantInteger }

// ConstFloat keeps the raw bits so NaN payloads survive into statics.
type ConstFloat struct {
	Bits uint32
}

func (c *ConstFloat) Tag() classfile.ConstantTag { return classfile.ConstantFloat }
func (c *ConstFloat) Value() float32             { return math.Float32frombits(c.Bits) }

type ConstLong struct {
	Value int64
}

func (c *ConstLong) Tag() classfile.ConstantTag { return classfile.ConstantLong }

type ConstDouble struct {
	Bits uint64
}

func (c *ConstDouble) Tag() classfile.ConstantTag { return classfile.ConstantDouble }
func (c *ConstDouble) Value() float64             { return math.Float64frombits(c.Bits) }

// ConstClass is a symbolic reference to a class by internal name. It is
// resolved to a loaded *Type on first use and cached from then on.
type ConstClass struct {
	NameIndex uint16
	Name      string

	link resolution[*Type]
}

func (c *ConstClass) Tag() classfile.ConstantTag { return classfile.ConstantClass }

// ConstString is a string literal. Slot is the statics object slot holding
// the interned value; it is assigned when the owning type is committed.
type ConstString struct {
	StringIndex uint16
	Value       string
	Slot        int
}

func (c *ConstString) Tag() classfile.ConstantTag { return classfile.ConstantString }

type ConstNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
	Name            string
	Descriptor      string
}

func (c *ConstNameAndType) Tag() classfile.ConstantTag { return classfile.ConstantNameAndType }

// MemberRef is the part shared by field, method and interface-method refs.
type MemberRef struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
	Class            *ConstClass
	Name             string
	Descriptor       string
}

func (m *MemberRef) String() string {
	className := "?"
	if m.Class != nil {
		className = m.Class.Name
	}
	return className + "." + m.Name + m.Descriptor
}

type ConstFieldRef struct {
	MemberRef
	link resolution[*Field]
}

func (c *ConstFieldRef) Tag() classfile.ConstantTag { return classfile.ConstantFieldref }

type ConstMethodRef struct {
	MemberRef
	link resolution[*Method]
}

func (c *ConstMethodRef) Tag() classfile.ConstantTag { return classfile.ConstantMethodref }

type ConstIMethodRef struct {
	MemberRef
	link     resolution[*Method]
	selector int
}

func (c *ConstIMethodRef) Tag() classfile.ConstantTag { return classfile.ConstantInterfaceMethodref }

// ConstantPool is 1-based. Index 0 and the second index of every Long or
// Double entry hold nil and cannot be addressed.
type ConstantPool struct {
	entries []Const
}

func (cp *ConstantPool) Len() int { return len(cp.entries) }

// Entry returns the entry at index or a ClassFormatError for index 0, an
// out-of-range index or the shadow slot of a wide entry.
func (cp *ConstantPool) Entry(index int) (Const, error) {
	if index <= 0 || index >= len(cp.entries) {
		return nil, classfile.Errorf(classfile.ErrInvalidIndex, "index %d out of range [1, %d)", index, len(cp.entries))
	}
	e := cp.entries[index]
	if e == nil {
		return nil, classfile.Errorf(classfile.ErrInvalidIndex, "index %d is the second slot of a wide entry", index)
	}
	return e, nil
}

func entryAs[T Const](cp *ConstantPool, index int, want string) (T, error) {
	var zero T
	e, err := cp.Entry(index)
	if err != nil {
		return zero, err
	}
	v, ok := e.(T)
	if !ok {
		return zero, classfile.Errorf(classfile.ErrInvalidIndex, "index %d is a %s entry, want %s", index, e.Tag(), want)
	}
	return v, nil
}

func (cp *ConstantPool) Utf8(index int) (string, error) {
	e, err := entryAs[*ConstUtf8](cp, index, "Utf8")
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

func (cp *ConstantPool) Int(index int) (int32, error) {
	e, err := entryAs[*ConstInt](cp, index, "Integer")
	if err != nil {
		return 0, err
	}
	return e.Value, nil
}

func (cp *ConstantPool) Float(index int) (*ConstFloat, error) {
	return entryAs[*ConstFloat](cp, index, "Float")
}

func (cp *ConstantPool) Long(index int) (int64, error) {
	e, err := entryAs[*ConstLong](cp, index, "Long")
	if err != nil {
		return 0, err
	}
	return e.Value, nil
}

func (cp *ConstantPool) Double(index int) (*ConstDouble, error) {
	return entryAs[*ConstDouble](cp, index, "Double")
}

func (cp *ConstantPool) Class(index int) (*ConstClass, error) {
	return entryAs[*ConstClass](cp, index, "Class")
}

func (cp *ConstantPool) ClassName(index int) (string, error) {
	c, err := cp.Class(index)
	if err != nil {
		return "", err
	}
	return c.Name, nil
}

func (cp *ConstantPool) String(index int) (*ConstString, error) {
	return entryAs[*ConstString](cp, index, "String")
}

func (cp *ConstantPool) NameAndType(index int) (*ConstNameAndType, error) {
	return entryAs[*ConstNameAndType](cp, index, "NameAndType")
}

func (cp *ConstantPool) FieldRef(index int) (*ConstFieldRef, error) {
	return entryAs[*ConstFieldRef](cp, index, "Fieldref")
}

func (cp *ConstantPool) MethodRef(index int) (*ConstMethodRef, error) {
	return entryAs[*ConstMethodRef](cp, index, "Methodref")
}

func (cp *ConstantPool) IMethodRef(index int) (*ConstIMethodRef, error) {
	return entryAs[*ConstIMethodRef](cp, index, "InterfaceMethodref")
}

// Each calls fn for every addressable entry in index order.
func (cp *ConstantPool) Each(fn func(index int, e Const)) {
	for i, e := range cp.entries {
		if e != nil {
			fn(i, e)
		}
	}
}

// readConstantPool reads the count and the tagged entries, then links every
// index-bearing entry to the entries it names. Statics are not touched.
func readConstantPool(c *classfile.Cursor) (*ConstantPool, error) {
	count := int(c.U2())
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("constant pool count: %w", err)
	}
	cp := &ConstantPool{entries: make([]Const, max(count, 1))}

	for i := 1; i < count; i++ {
		pos := c.Pos()
		tag := classfile.ConstantTag(c.U1())
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("constant pool entry %d: %w", i, err)
		}
		if !tag.Valid() {
			e := classfile.InvalidTagError(uint8(tag), i)
			e.Offset = pos
			return nil, e
		}
		if tag.Wide() && i+1 >= count {
			return nil, classfile.Errorf(classfile.ErrInvalidIndex, "wide entry at %d overflows pool of %d", i, count)
		}
		cp.entries[i] = readConstant(c, tag)
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("constant pool entry %d: %w", i, err)
		}
		if tag.Wide() {
			i++
		}
	}

	if err := cp.link(); err != nil {
		return nil, err
	}
	return cp, nil
}

func readConstant(c *classfile.Cursor, tag classfile.ConstantTag) Const {
	switch tag {
	case classfile.ConstantUtf8:
		return &ConstUtf8{Value: c.UTF8()}
	case classfile.ConstantInteger:
		return &ConstInt{Value: int32(c.U4())}
	case classfile.ConstantFloat:
		return &ConstFloat{Bits: c.U4()}
	case classfile.ConstantLong:
		return &ConstLong{Value: int64(c.U8())}
	case classfile.ConstantDouble:
		return &ConstDouble{Bits: c.U8()}
	case classfile.ConstantClass:
		return &ConstClass{NameIndex: c.U2()}
	case classfile.ConstantString:
		return &ConstString{StringIndex: c.U2(), Slot: -1}
	case classfile.ConstantFieldref:
		return &ConstFieldRef{MemberRef: readMemberRef(c)}
	case classfile.ConstantMethodref:
		return &ConstMethodRef{MemberRef: readMemberRef(c)}
	case classfile.ConstantInterfaceMethodref:
		return &ConstIMethodRef{MemberRef: readMemberRef(c), selector: -1}
	case classfile.ConstantNameAndType:
		return &ConstNameAndType{NameIndex: c.U2(), DescriptorIndex: c.U2()}
	}
	panic(fmt.Sprintf("readConstant: unhandled tag %d", tag))
}

func readMemberRef(c *classfile.Cursor) MemberRef {
	return MemberRef{ClassIndex: c.U2(), NameAndTypeIndex: c.U2()}
}

// link fills in names for class, string, name-and-type and member entries.
// Classes and name-and-types go first because member refs point at them.
func (cp *ConstantPool) link() error {
	for i, e := range cp.entries {
		var err error
		switch e := e.(type) {
		case *ConstClass:
			e.Name, err = cp.Utf8(int(e.NameIndex))
		case *ConstString:
			e.Value, err = cp.Utf8(int(e.StringIndex))
		case *ConstNameAndType:
			if e.Name, err = cp.Utf8(int(e.NameIndex)); err == nil {
				e.Descriptor, err = cp.Utf8(int(e.DescriptorIndex))
			}
		}
		if err != nil {
			return fmt.Errorf("constant pool entry %d: %w", i, err)
		}
	}
	for i, e := range cp.entries {
		var err error
		switch e := e.(type) {
		case *ConstFieldRef:
			err = cp.linkMember(&e.MemberRef)
		case *ConstMethodRef:
			err = cp.linkMember(&e.MemberRef)
		case *ConstIMethodRef:
			err = cp.linkMember(&e.MemberRef)
		}
		if err != nil {
			return fmt.Errorf("constant pool entry %d: %w", i, err)
		}
	}
	return nil
}

func (cp *ConstantPool) linkMember(m *MemberRef) error {
	class, err := cp.Class(int(m.ClassIndex))
	if err != nil {
		return err
	}
	nat, err := cp.NameAndType(int(m.NameAndTypeIndex))
	if err != nil {
		return err
	}
	m.Class = class
	m.Name = nat.Name
	m.Descriptor = nat.Descriptor
	return nil
}
