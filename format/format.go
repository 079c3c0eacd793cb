package format

import (
	"encoding"
	"strings"

	"github.com/dhamidi/jload/classfile"
	"github.com/dhamidi/jload/classmgr"
)

type Encoder interface {
	encoding.TextMarshaler
	Encode(t *classmgr.Type) error
}

type typeSummary struct {
	Name       string          `json:"name"`
	SuperClass string          `json:"superClass,omitempty"`
	Kind       string          `json:"kind"`
	Modifiers  []string        `json:"modifiers,omitempty"`
	Version    versionSummary  `json:"version"`
	Interfaces []string        `json:"interfaces,omitempty"`
	ObjectSize int             `json:"objectSize"`
	PoolSize   int             `json:"poolSize"`
	Fields     []fieldSummary  `json:"fields,omitempty"`
	Methods    []methodSummary `json:"methods,omitempty"`
}

type versionSummary struct {
	Major uint16 `json:"major"`
	Minor uint16 `json:"minor"`
}

type fieldSummary struct {
	Name       string   `json:"name"`
	Descriptor string   `json:"descriptor"`
	Kind       string   `json:"kind"`
	Modifiers  []string `json:"modifiers,omitempty"`
	Offset     *int     `json:"offset,omitempty"`
	Slot       *int     `json:"slot,omitempty"`
	SlotKind   string   `json:"slotKind,omitempty"`
}

type methodSummary struct {
	Name       string       `json:"name"`
	Descriptor string       `json:"descriptor"`
	Kind       string       `json:"kind"`
	Modifiers  []string     `json:"modifiers,omitempty"`
	ArgSlots   int          `json:"argSlots"`
	Slot       int          `json:"slot"`
	Selector   *int         `json:"selector,omitempty"`
	Code       *codeSummary `json:"code,omitempty"`
	Exceptions []string     `json:"exceptions,omitempty"`
}

type codeSummary struct {
	MaxStack  uint16 `json:"maxStack"`
	MaxLocals uint16 `json:"maxLocals"`
	Length    int    `json:"length"`
	Handlers  int    `json:"handlers"`
	Lines     int    `json:"lines"`
}

func summarize(t *classmgr.Type) typeSummary {
	s := typeSummary{
		Name:       t.Name,
		SuperClass: t.SuperName,
		Kind:       t.Kind.String(),
		Modifiers:  classModifiers(t.Modifiers),
		Version:    versionSummary{Major: t.Version.Major, Minor: t.Version.Minor},
		Interfaces: t.Interfaces,
		ObjectSize: t.ObjectSize,
		PoolSize:   t.CP.Len(),
	}
	for _, f := range t.Fields {
		fs := fieldSummary{
			Name:       f.Name,
			Descriptor: f.Descriptor,
			Kind:       f.Kind.String(),
			Modifiers:  fieldModifiers(f.Modifiers),
		}
		if f.IsStatic() {
			slot := f.Slot
			fs.Slot = &slot
			fs.SlotKind = f.SlotKind.String()
		} else {
			offset := f.Offset
			fs.Offset = &offset
		}
		s.Fields = append(s.Fields, fs)
	}
	for _, m := range t.Methods {
		ms := methodSummary{
			Name:       m.Name,
			Descriptor: m.Descriptor,
			Kind:       m.Kind.String(),
			Modifiers:  methodModifiers(m.Modifiers),
			ArgSlots:   m.ArgSlots,
			Slot:       m.Slot,
		}
		if m.Kind == classmgr.InstanceMethod {
			sel := m.Selector
			ms.Selector = &sel
		}
		if bc := m.Bytecode; bc != nil {
			ms.Code = &codeSummary{
				MaxStack:  bc.MaxStack,
				MaxLocals: bc.MaxLocals,
				Length:    len(bc.Code),
				Handlers:  len(bc.Handlers),
				Lines:     len(bc.Lines),
			}
		}
		for _, ex := range m.Exceptions {
			ms.Exceptions = append(ms.Exceptions, ex.Name)
		}
		s.Methods = append(s.Methods, ms)
	}
	return s
}

func visibility(f classfile.AccessFlags) string {
	switch {
	case f.IsPublic():
		return "public"
	case f.IsProtected():
		return "protected"
	case f.IsPrivate():
		return "private"
	default:
		return "package"
	}
}

func classModifiers(f classfile.AccessFlags) []string {
	mods := []string{visibility(f)}
	if f.IsFinal() {
		mods = append(mods, "final")
	}
	if f.IsAbstract() {
		mods = append(mods, "abstract")
	}
	if f.IsSynthetic() {
		mods = append(mods, "synthetic")
	}
	if f.IsAnnotation() {
		mods = append(mods, "annotation")
	}
	if f.IsEnum() {
		mods = append(mods, "enum")
	}
	return mods
}

func fieldModifiers(f classfile.AccessFlags) []string {
	mods := []string{visibility(f)}
	if f.IsStatic() {
		mods = append(mods, "static")
	}
	if f.IsFinal() {
		mods = append(mods, "final")
	}
	if f.IsVolatile() {
		mods = append(mods, "volatile")
	}
	if f.IsTransient() {
		mods = append(mods, "transient")
	}
	if f.IsSynthetic() {
		mods = append(mods, "synthetic")
	}
	if f.IsEnum() {
		mods = append(mods, "enum")
	}
	return mods
}

func methodModifiers(f classfile.AccessFlags) []string {
	mods := []string{visibility(f)}
	if f.IsStatic() {
		mods = append(mods, "static")
	}
	if f.IsFinal() {
		mods = append(mods, "final")
	}
	if f.IsAbstract() {
		mods = append(mods, "abstract")
	}
	if f.IsSynchronized() {
		mods = append(mods, "synchronized")
	}
	if f.IsNative() {
		mods = append(mods, "native")
	}
	if f.IsBridge() {
		mods = append(mods, "bridge")
	}
	if f.IsVarargs() {
		mods = append(mods, "varargs")
	}
	if f.IsSynthetic() {
		mods = append(mods, "synthetic")
	}
	return mods
}

func joinOrDash(parts []string) string {
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}
