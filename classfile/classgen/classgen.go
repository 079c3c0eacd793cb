// Package classgen assembles class images in the binary class-file layout.
// It exists so tests and fixtures can describe a class in a few lines
// instead of shipping compiled .class files.
package classgen

import (
	"encoding/binary"
	"math"

	"github.com/dhamidi/jload/classfile"
)

type poolEntry struct {
	tag     byte
	payload []byte
	wide    bool
}

type member struct {
	flags classfile.AccessFlags
	name  uint16
	desc  uint16
	attrs []Attribute
}

// Attribute is a named, already-encoded attribute body.
type Attribute struct {
	Name string
	Data []byte
}

type Builder struct {
	Major, Minor uint16
	Flags        classfile.AccessFlags

	pool       []poolEntry
	next       uint16
	utf8s      map[string]uint16
	classes    map[string]uint16
	thisClass  uint16
	superClass uint16
	interfaces []uint16
	fields     []member
	methods    []member
}

// New starts a class named name extending super. An empty super leaves the
// super-class index at 0, which marks the root type.
func New(name, super string) *Builder {
	b := &Builder{
		Major:   52,
		Flags:   classfile.AccPublic | classfile.AccSuper,
		next:    1,
		utf8s:   make(map[string]uint16),
		classes: make(map[string]uint16),
	}
	b.thisClass = b.Class(name)
	if super != "" {
		b.superClass = b.Class(super)
	}
	return b
}

// Raw appends a pool entry with an arbitrary tag and payload.
func (b *Builder) Raw(tag byte, payload []byte, wide bool) uint16 {
	idx := b.next
	b.pool = append(b.pool, poolEntry{tag: tag, payload: payload, wide: wide})
	b.next++
	if wide {
		b.next++
	}
	return idx
}

func (b *Builder) Utf8(s string) uint16 {
	if idx, ok := b.utf8s[s]; ok {
		return idx
	}
	enc := classfile.EncodeModifiedUTF8(s)
	payload := binary.BigEndian.AppendUint16(nil, uint16(len(enc)))
	payload = append(payload, enc...)
	idx := b.Raw(byte(classfile.ConstantUtf8), payload, false)
	b.utf8s[s] = idx
	return idx
}

func (b *Builder) Int(v int32) uint16 {
	return b.Raw(byte(classfile.ConstantInteger), binary.BigEndian.AppendUint32(nil, uint32(v)), false)
}

func (b *Builder) Float(v float32) uint16 {
	return b.Raw(byte(classfile.ConstantFloat), binary.BigEndian.AppendUint32(nil, math.Float32bits(v)), false)
}

func (b *Builder) Long(v int64) uint16 {
	return b.Raw(byte(classfile.ConstantLong), binary.BigEndian.AppendUint64(nil, uint64(v)), true)
}

func (b *Builder) Double(v float64) uint16 {
	return b.Raw(byte(classfile.ConstantDouble), binary.BigEndian.AppendUint64(nil, math.Float64bits(v)), true)
}

func (b *Builder) Class(name string) uint16 {
	if idx, ok := b.classes[name]; ok {
		return idx
	}
	idx := b.Raw(byte(classfile.ConstantClass), u2(b.Utf8(name)), false)
	b.classes[name] = idx
	return idx
}

func (b *Builder) String(s string) uint16 {
	return b.Raw(byte(classfile.ConstantString), u2(b.Utf8(s)), false)
}

func (b *Builder) NameAndType(name, desc string) uint16 {
	return b.Raw(byte(classfile.ConstantNameAndType), append(u2(b.Utf8(name)), u2(b.Utf8(desc))...), false)
}

func (b *Builder) Fieldref(class, name, desc string) uint16 {
	return b.memberRef(classfile.ConstantFieldref, class, name, desc)
}

func (b *Builder) Methodref(class, name, desc string) uint16 {
	return b.memberRef(classfile.ConstantMethodref, class, name, desc)
}

func (b *Builder) InterfaceMethodref(class, name, desc string) uint16 {
	return b.memberRef(classfile.ConstantInterfaceMethodref, class, name, desc)
}

// MemberRef builds a member reference from raw indices, valid or not.
func (b *Builder) MemberRef(tag classfile.ConstantTag, classIndex, natIndex uint16) uint16 {
	return b.Raw(byte(tag), append(u2(classIndex), u2(natIndex)...), false)
}

func (b *Builder) memberRef(tag classfile.ConstantTag, class, name, desc string) uint16 {
	return b.MemberRef(tag, b.Class(class), b.NameAndType(name, desc))
}

func (b *Builder) Interface(name string) *Builder {
	b.interfaces = append(b.interfaces, b.Class(name))
	return b
}

func (b *Builder) Field(flags classfile.AccessFlags, name, desc string, attrs ...Attribute) *Builder {
	b.fields = append(b.fields, member{flags: flags, name: b.Utf8(name), desc: b.Utf8(desc), attrs: attrs})
	return b
}

func (b *Builder) Method(flags classfile.AccessFlags, name, desc string, attrs ...Attribute) *Builder {
	b.methods = append(b.methods, member{flags: flags, name: b.Utf8(name), desc: b.Utf8(desc), attrs: attrs})
	return b
}

func (b *Builder) ConstantValue(index uint16) Attribute {
	return Attribute{Name: "ConstantValue", Data: u2(index)}
}

func (b *Builder) Exceptions(classes ...string) Attribute {
	data := u2(uint16(len(classes)))
	for _, c := range classes {
		data = append(data, u2(b.Class(c))...)
	}
	return Attribute{Name: "Exceptions", Data: data}
}

type Handler struct {
	StartPC, EndPC, HandlerPC uint16
	// CatchType names the caught class; empty means catch-all.
	CatchType string
}

type Line struct {
	StartPC, Line uint16
}

func (b *Builder) LineNumbers(lines ...Line) Attribute {
	data := u2(uint16(len(lines)))
	for _, l := range lines {
		data = append(data, u2(l.StartPC)...)
		data = append(data, u2(l.Line)...)
	}
	return Attribute{Name: "LineNumberTable", Data: data}
}

type Code struct {
	MaxStack, MaxLocals uint16
	Code                []byte
	Handlers            []Handler
	Attributes          []Attribute
}

func (b *Builder) Code(c Code) Attribute {
	data := u2(c.MaxStack)
	data = append(data, u2(c.MaxLocals)...)
	data = binary.BigEndian.AppendUint32(data, uint32(len(c.Code)))
	data = append(data, c.Code...)
	data = append(data, u2(uint16(len(c.Handlers)))...)
	for _, h := range c.Handlers {
		var catchType uint16
		if h.CatchType != "" {
			catchType = b.Class(h.CatchType)
		}
		data = append(data, u2(h.StartPC)...)
		data = append(data, u2(h.EndPC)...)
		data = append(data, u2(h.HandlerPC)...)
		data = append(data, u2(catchType)...)
	}
	data = b.appendAttributes(data, c.Attributes)
	return Attribute{Name: "Code", Data: data}
}

// Bytes serializes the class image. Attribute names are interned into the
// pool here, so call it only after every entry has been added.
func (b *Builder) Bytes() []byte {
	var body []byte
	body = append(body, u2(uint16(b.Flags))...)
	body = append(body, u2(b.thisClass)...)
	body = append(body, u2(b.superClass)...)
	body = append(body, u2(uint16(len(b.interfaces)))...)
	for _, i := range b.interfaces {
		body = append(body, u2(i)...)
	}
	body = b.appendMembers(body, b.fields)
	body = b.appendMembers(body, b.methods)
	body = append(body, 0, 0)

	out := binary.BigEndian.AppendUint32(nil, classfile.Magic)
	out = append(out, u2(b.Minor)...)
	out = append(out, u2(b.Major)...)
	out = append(out, u2(b.next)...)
	for _, e := range b.pool {
		out = append(out, e.tag)
		out = append(out, e.payload...)
	}
	return append(out, body...)
}

func (b *Builder) appendMembers(out []byte, members []member) []byte {
	out = append(out, u2(uint16(len(members)))...)
	for _, m := range members {
		out = append(out, u2(uint16(m.flags))...)
		out = append(out, u2(m.name)...)
		out = append(out, u2(m.desc)...)
		out = b.appendAttributes(out, m.attrs)
	}
	return out
}

func (b *Builder) appendAttributes(out []byte, attrs []Attribute) []byte {
	out = append(out, u2(uint16(len(attrs)))...)
	for _, a := range attrs {
		out = append(out, u2(b.Utf8(a.Name))...)
		out = binary.BigEndian.AppendUint32(out, uint32(len(a.Data)))
		out = append(out, a.Data...)
	}
	return out
}

func u2(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}
