package classmgr

import (
	"fmt"

	"github.com/dhamidi/jload/classfile"
	"github.com/dhamidi/jload/statics"
	"github.com/tliron/commonlog"
)

// Statics is the allocator a decoder commits static fields, string literals
// and methods to. *statics.Table implements it.
type Statics interface {
	AllocInt() int
	AllocLong() int
	AllocAddress() int
	AllocObject() int
	AllocMethod() int
	SetInt(idx int, v int32)
	SetLong(idx int, v int64)
	SetObject(idx int, v any)
	SetMethod(idx int, method any)
	Intern(s string) string
}

// SelectorAssigner hands out dispatch selectors for instance methods.
// *selector.Registry implements it.
type SelectorAssigner interface {
	Assign(name, descriptor string) int
}

type Option func(*Decoder)

// WithRejectNatives makes Decode fail on any method with the native modifier.
func WithRejectNatives(reject bool) Option {
	return func(d *Decoder) { d.rejectNatives = reject }
}

// WithAddressTypes replaces the field descriptors that get address-word
// statics slots instead of object slots.
func WithAddressTypes(descriptors []string) Option {
	return func(d *Decoder) {
		d.addressTypes = make(map[string]bool, len(descriptors))
		for _, desc := range descriptors {
			d.addressTypes[desc] = true
		}
	}
}

func WithLogger(l commonlog.Logger) Option {
	return func(d *Decoder) { d.log = l }
}

// Decoder turns class images into Types. A Decoder holds no per-image state
// and may be used from several goroutines at once.
type Decoder struct {
	statics       Statics
	selectors     SelectorAssigner
	rejectNatives bool
	addressTypes  map[string]bool
	log           commonlog.Logger
}

func NewDecoder(st Statics, selectors SelectorAssigner, opts ...Option) *Decoder {
	d := &Decoder{
		statics:   st,
		selectors: selectors,
		log:       log,
	}
	WithAddressTypes(classfile.DefaultAddressTypes)(d)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads the class image data[offset : offset+length] and returns the
// type it describes, tagged with loader.
//
// The image is read and validated completely before anything is written to
// the statics table or the selector registry, so a failed decode has no
// side effects.
func (d *Decoder) Decode(data []byte, offset, length int, loader any) (*Type, error) {
	c := classfile.NewCursor(data, offset, length)

	magic := c.U4()
	if err := c.Err(); err != nil {
		return nil, err
	}
	if magic != classfile.Magic {
		return nil, &classfile.FormatError{
			Kind:   classfile.ErrBadMagic,
			Offset: 0,
			Detail: fmt.Sprintf("got 0x%08X", magic),
		}
	}

	t := &Type{Loader: loader}
	t.Version.Minor = c.U2()
	t.Version.Major = c.U2()
	if err := c.Err(); err != nil {
		return nil, err
	}

	cp, err := readConstantPool(c)
	if err != nil {
		return nil, err
	}
	t.CP = cp

	t.Modifiers = classfile.AccessFlags(c.U2())
	thisIndex := int(c.U2())
	superIndex := int(c.U2())
	if err := c.Err(); err != nil {
		return nil, err
	}
	if t.Name, err = cp.ClassName(thisIndex); err != nil {
		return nil, fmt.Errorf("this class: %w", err)
	}
	if superIndex != 0 {
		if t.SuperName, err = cp.ClassName(superIndex); err != nil {
			return nil, fmt.Errorf("super class of %s: %w", t.Name, err)
		}
	}
	if t.Modifiers.IsInterface() {
		t.Kind = InterfaceType
	}

	if err := readInterfaces(c, t); err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	if err := d.readFields(c, t); err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	if err := d.readMethods(c, t); err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	if c.Remaining() > 0 {
		if err := readAttributes(c, cp, nil); err != nil {
			return nil, fmt.Errorf("%s: class attributes: %w", t.Name, err)
		}
	}
	if n := c.Remaining(); n > 0 {
		e := classfile.Errorf(classfile.ErrExtraBytes, "%s: %d bytes after the class attributes", t.Name, n)
		e.Offset = c.Pos()
		return nil, e
	}

	d.commit(t)
	d.log.Debugf("decoded %s: %d fields, %d methods, object size %d",
		t.Name, len(t.Fields), len(t.Methods), t.ObjectSize)
	return t, nil
}

func readInterfaces(c *classfile.Cursor, t *Type) error {
	count := int(c.U2())
	if err := c.Err(); err != nil {
		return fmt.Errorf("interface count: %w", err)
	}
	t.Interfaces = make([]string, 0, count)
	for i := 0; i < count; i++ {
		index := int(c.U2())
		if err := c.Err(); err != nil {
			return fmt.Errorf("interface %d: %w", i, err)
		}
		name, err := t.CP.ClassName(index)
		if err != nil {
			return fmt.Errorf("interface %d: %w", i, err)
		}
		t.Interfaces = append(t.Interfaces, name)
	}
	t.ifaces = make([]resolution[*Type], count)
	return nil
}

func (d *Decoder) readFields(c *classfile.Cursor, t *Type) error {
	count := int(c.U2())
	if err := c.Err(); err != nil {
		return fmt.Errorf("field count: %w", err)
	}

	size := 0
	hasInstance := false
	t.Fields = make([]*Field, 0, count)
	for i := 0; i < count; i++ {
		f, err := d.readField(c, t)
		if err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		if !f.IsStatic() {
			f.Offset = size
			size += f.Size()
			hasInstance = true
		}
		t.Fields = append(t.Fields, f)
	}
	if hasInstance && !t.IsInterface() {
		t.ObjectSize = size
	}
	return nil
}

func (d *Decoder) readField(c *classfile.Cursor, t *Type) (*Field, error) {
	f := &Field{Declarer: t, Offset: -1, Slot: -1}
	f.Modifiers = classfile.AccessFlags(c.U2())
	nameIndex := int(c.U2())
	descIndex := int(c.U2())
	if err := c.Err(); err != nil {
		return nil, err
	}

	var err error
	if f.Name, err = t.CP.Utf8(nameIndex); err != nil {
		return nil, err
	}
	if f.Descriptor, err = t.CP.Utf8(descIndex); err != nil {
		return nil, err
	}
	if classfile.ParseFieldDescriptor(f.Descriptor) == nil {
		return nil, classfile.Errorf(classfile.ErrInvalidDescriptor, "field %s has descriptor %q", f.Name, f.Descriptor)
	}

	var handlers map[classfile.AttributeName]attributeFunc
	if f.Modifiers.IsStatic() {
		f.Kind = StaticField
		f.SlotKind = d.staticKind(f.Descriptor)
		handlers = map[classfile.AttributeName]attributeFunc{
			classfile.AttrConstantValue: func(ac *classfile.Cursor) error {
				index := int(ac.U2())
				if err := ac.Err(); err != nil {
					return err
				}
				v, err := constantValue(t.CP, index, f)
				if err != nil {
					return err
				}
				f.constant = v
				return nil
			},
		}
	} else if t.IsInterface() {
		return nil, classfile.Errorf(classfile.ErrIllegalModifiers, "interface %s declares instance field %s", t.Name, f.Name)
	}

	if err := readAttributes(c, t.CP, handlers); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return f, nil
}

// staticKind picks the statics slot kind for a static field's descriptor.
func (d *Decoder) staticKind(desc string) statics.Kind {
	switch desc[0] {
	case 'J', 'D':
		return statics.KindLong
	case 'L', '[':
		if d.addressTypes[desc] {
			return statics.KindAddress
		}
		return statics.KindObject
	default:
		return statics.KindInt
	}
}

// constantValue returns the pool entry a ConstantValue attribute names after
// checking it suits the field's type.
func constantValue(cp *ConstantPool, index int, f *Field) (Const, error) {
	e, err := cp.Entry(index)
	if err != nil {
		return nil, err
	}
	ok := false
	switch f.SlotKind {
	case statics.KindInt:
		switch e.(type) {
		case *ConstInt:
			ok = f.Descriptor != "F"
		case *ConstFloat:
			ok = f.Descriptor == "F"
		}
	case statics.KindLong:
		switch e.(type) {
		case *ConstLong:
			ok = f.Descriptor == "J"
		case *ConstDouble:
			ok = f.Descriptor == "D"
		}
	case statics.KindObject:
		_, ok = e.(*ConstString)
		ok = ok && f.Descriptor == "Ljava/lang/String;"
	}
	if !ok {
		return nil, classfile.Errorf(classfile.ErrInvalidConstantValue, "%s entry at %d cannot initialize %s field %s", e.Tag(), index, f.Descriptor, f.Name)
	}
	return e, nil
}

func (d *Decoder) readMethods(c *classfile.Cursor, t *Type) error {
	count := int(c.U2())
	if err := c.Err(); err != nil {
		return fmt.Errorf("method count: %w", err)
	}
	t.Methods = make([]*Method, 0, count)
	for i := 0; i < count; i++ {
		m, err := d.readMethod(c, t)
		if err != nil {
			return fmt.Errorf("method %d: %w", i, err)
		}
		t.Methods = append(t.Methods, m)
	}
	return nil
}

func (d *Decoder) readMethod(c *classfile.Cursor, t *Type) (*Method, error) {
	m := &Method{Declarer: t, Slot: -1, Selector: -1}
	m.Modifiers = classfile.AccessFlags(c.U2())
	nameIndex := int(c.U2())
	descIndex := int(c.U2())
	if err := c.Err(); err != nil {
		return nil, err
	}

	var err error
	if m.Name, err = t.CP.Utf8(nameIndex); err != nil {
		return nil, err
	}
	if m.Descriptor, err = t.CP.Utf8(descIndex); err != nil {
		return nil, err
	}
	if d.rejectNatives && m.IsNative() {
		return nil, classfile.Errorf(classfile.ErrUnsupportedNative, "%s.%s%s", t.Name, m.Name, m.Descriptor)
	}

	md := classfile.ParseMethodDescriptor(m.Descriptor)
	if md == nil {
		return nil, classfile.Errorf(classfile.ErrInvalidDescriptor, "method %s has descriptor %q", m.Name, m.Descriptor)
	}
	m.ArgSlots = md.ArgSlots()
	if !m.Modifiers.IsStatic() {
		m.ArgSlots++
	}
	m.Kind = classifyMethod(m.Name, m.Modifiers)

	err = readAttributes(c, t.CP, map[classfile.AttributeName]attributeFunc{
		classfile.AttrCode: func(ac *classfile.Cursor) error {
			bc, err := readCode(ac, t.CP)
			if err != nil {
				return err
			}
			m.Bytecode = bc
			return nil
		},
		classfile.AttrExceptions: func(ac *classfile.Cursor) error {
			n := int(ac.U2())
			m.Exceptions = make([]*ConstClass, 0, n)
			for i := 0; i < n; i++ {
				index := int(ac.U2())
				if err := ac.Err(); err != nil {
					return err
				}
				cls, err := t.CP.Class(index)
				if err != nil {
					return err
				}
				m.Exceptions = append(m.Exceptions, cls)
			}
			return ac.Err()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s%s: %w", m.Name, m.Descriptor, err)
	}
	return m, nil
}

type attributeFunc func(c *classfile.Cursor) error

// readAttributes reads an attribute table. Attributes with a handler are
// given a cursor bounded by the declared length and must consume all of it;
// every other attribute is skipped.
func readAttributes(c *classfile.Cursor, cp *ConstantPool, handlers map[classfile.AttributeName]attributeFunc) error {
	count := int(c.U2())
	if err := c.Err(); err != nil {
		return fmt.Errorf("attribute count: %w", err)
	}
	for i := 0; i < count; i++ {
		nameIndex := int(c.U2())
		length := int(c.U4())
		if err := c.Err(); err != nil {
			return fmt.Errorf("attribute %d: %w", i, err)
		}
		name, err := cp.Utf8(nameIndex)
		if err != nil {
			return fmt.Errorf("attribute %d: %w", i, err)
		}
		ac := c.Sub(length)
		if err := c.Err(); err != nil {
			return fmt.Errorf("attribute %s: %w", name, err)
		}

		fn := handlers[classfile.LookupAttribute(name)]
		if fn == nil {
			continue
		}
		if err := fn(ac); err != nil {
			return fmt.Errorf("attribute %s: %w", name, err)
		}
		if err := ac.Err(); err != nil {
			return fmt.Errorf("attribute %s: %w", name, err)
		}
		if ac.Remaining() != 0 {
			e := classfile.Errorf(classfile.ErrAttributeLength, "%s declares %d bytes, %d unread", name, length, ac.Remaining())
			e.Offset = ac.Pos()
			return e
		}
	}
	return nil
}

// commit performs every statics and selector side effect of a decoded type.
// It runs only after the whole image has been read.
func (d *Decoder) commit(t *Type) {
	t.CP.Each(func(_ int, e Const) {
		if s, ok := e.(*ConstString); ok {
			s.Value = d.statics.Intern(s.Value)
			s.Slot = d.statics.AllocObject()
			d.statics.SetObject(s.Slot, s.Value)
		}
	})

	for _, f := range t.Fields {
		if !f.IsStatic() {
			continue
		}
		switch f.SlotKind {
		case statics.KindLong:
			f.Slot = d.statics.AllocLong()
		case statics.KindAddress:
			f.Slot = d.statics.AllocAddress()
		case statics.KindObject:
			f.Slot = d.statics.AllocObject()
		default:
			f.Slot = d.statics.AllocInt()
		}
		if f.constant != nil {
			d.setConstant(f)
		}
	}

	for _, m := range t.Methods {
		m.Slot = d.statics.AllocMethod()
		d.statics.SetMethod(m.Slot, m)
		if m.Kind == InstanceMethod {
			m.Selector = d.selectors.Assign(m.Name, m.Descriptor)
		}
	}
}

func (d *Decoder) setConstant(f *Field) {
	switch v := f.constant.(type) {
	case *ConstInt:
		d.statics.SetInt(f.Slot, v.Value)
	case *ConstFloat:
		d.statics.SetInt(f.Slot, int32(v.Bits))
	case *ConstLong:
		d.statics.SetLong(f.Slot, v.Value)
	case *ConstDouble:
		d.statics.SetLong(f.Slot, int64(v.Bits))
	case *ConstString:
		d.statics.SetObject(f.Slot, v.Value)
	}
	f.constant = nil
}
