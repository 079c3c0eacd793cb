package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhamidi/jload/classmgr"
)

type LineEncoder struct {
	w   io.Writer
	typ *classmgr.Type
}

func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{w: w}
}

func (e *LineEncoder) Encode(t *classmgr.Type) error {
	e.typ = t
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

// MarshalText writes one tab-separated line for the type and one per member:
//
//	class	name	super	modifiers	objectSize
//	field	name	descriptor	modifiers	offset=N | slot=N:kind
//	method	name	descriptor	modifiers	kind	argSlots	slot	selector
func (e *LineEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder
	s := summarize(e.typ)

	super := s.SuperClass
	if super == "" {
		super = "-"
	}
	fmt.Fprintf(&sb, "%s\t%s\t%s\t%s\t%d\n", s.Kind, s.Name, super, joinOrDash(s.Modifiers), s.ObjectSize)

	for _, iface := range s.Interfaces {
		fmt.Fprintf(&sb, "implements\t%s\n", iface)
	}

	for _, f := range s.Fields {
		var place string
		if f.Slot != nil {
			place = fmt.Sprintf("slot=%d:%s", *f.Slot, f.SlotKind)
		} else {
			place = fmt.Sprintf("offset=%d", *f.Offset)
		}
		fmt.Fprintf(&sb, "field\t%s\t%s\t%s\t%s\n", f.Name, f.Descriptor, joinOrDash(f.Modifiers), place)
	}

	for _, m := range s.Methods {
		selector := "-"
		if m.Selector != nil {
			selector = fmt.Sprint(*m.Selector)
		}
		fmt.Fprintf(&sb, "method\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			m.Name,
			m.Descriptor,
			joinOrDash(m.Modifiers),
			m.Kind,
			m.ArgSlots,
			m.Slot,
			selector,
		)
	}

	return []byte(sb.String()), nil
}
