package classmgr

import (
	"fmt"

	"github.com/dhamidi/jload/classfile"
)

// ExceptionHandler covers [StartPC, EndPC). A CatchIndex of 0 catches
// everything and leaves CatchType nil.
type ExceptionHandler struct {
	StartPC    uint16
	EndPC      uint16
	HandlerPC  uint16
	CatchIndex uint16
	CatchType  *ConstClass
}

func (h ExceptionHandler) IsCatchAll() bool { return h.CatchIndex == 0 }

func (h ExceptionHandler) Covers(pc int) bool {
	return pc >= int(h.StartPC) && pc < int(h.EndPC)
}

type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// Bytecode is the body of a Code attribute. The instructions are opaque.
type Bytecode struct {
	Code      []byte
	MaxStack  uint16
	MaxLocals uint16
	Handlers  []ExceptionHandler
	Lines     []LineNumber
}

// LineNumber returns the source line of the last table entry starting at or
// before pc, or -1 when there is none.
func (b *Bytecode) LineNumber(pc int) int {
	line := -1
	best := -1
	for _, ln := range b.Lines {
		start := int(ln.StartPC)
		if start <= pc && start >= best {
			best = start
			line = int(ln.Line)
		}
	}
	return line
}

// HandlersAt returns the handlers covering pc in table order. The first one
// whose catch type matches wins.
func (b *Bytecode) HandlersAt(pc int) []ExceptionHandler {
	var hs []ExceptionHandler
	for _, h := range b.Handlers {
		if h.Covers(pc) {
			hs = append(hs, h)
		}
	}
	return hs
}

func readCode(c *classfile.Cursor, cp *ConstantPool) (*Bytecode, error) {
	bc := &Bytecode{
		MaxStack:  c.U2(),
		MaxLocals: c.U2(),
	}
	codeLen := int(c.U4())
	if err := c.Err(); err != nil {
		return nil, err
	}
	bc.Code = c.Bytes(codeLen)
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("code of length %d: %w", codeLen, err)
	}

	count := int(c.U2())
	if err := c.Err(); err != nil {
		return nil, err
	}
	if count > 0 {
		bc.Handlers = make([]ExceptionHandler, 0, count)
	}
	for i := 0; i < count; i++ {
		h := ExceptionHandler{
			StartPC:    c.U2(),
			EndPC:      c.U2(),
			HandlerPC:  c.U2(),
			CatchIndex: c.U2(),
		}
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("exception handler %d: %w", i, err)
		}
		if h.CatchIndex != 0 {
			cls, err := cp.Class(int(h.CatchIndex))
			if err != nil {
				return nil, fmt.Errorf("exception handler %d: %w", i, err)
			}
			h.CatchType = cls
		}
		bc.Handlers = append(bc.Handlers, h)
	}

	err := readAttributes(c, cp, map[classfile.AttributeName]attributeFunc{
		classfile.AttrLineNumberTable: func(ac *classfile.Cursor) error {
			n := int(ac.U2())
			for i := 0; i < n && ac.Err() == nil; i++ {
				bc.Lines = append(bc.Lines, LineNumber{StartPC: ac.U2(), Line: ac.U2()})
			}
			return ac.Err()
		},
	})
	if err != nil {
		return nil, err
	}
	return bc, nil
}
