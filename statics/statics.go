// Package statics implements the process-wide statics table: an append-only
// array of typed words giving every static field, interned string literal
// and method a stable, globally addressable slot.
//
// A Table is created once and shared by every class decode. Slot numbers are
// handed out in allocation order; nothing may depend on their exact values.
package statics

import (
	"fmt"
	"sync"
)

type Kind uint8

const (
	// KindNone marks the second word of a long-word slot.
	KindNone Kind = iota
	KindInt
	KindLong
	KindAddress
	KindObject
	KindMethod
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindAddress:
		return "address"
	case KindObject:
		return "object"
	case KindMethod:
		return "method"
	default:
		return "none"
	}
}

// Words is the number of table words a slot of this kind occupies.
func (k Kind) Words() int {
	if k == KindLong {
		return 2
	}
	return 1
}

type word struct {
	kind Kind
	bits uint64
	ref  any
}

type Table struct {
	mu      sync.RWMutex
	words   []word
	strings map[string]string
}

func NewTable() *Table {
	return &Table{
		words:   make([]word, 0, 1024),
		strings: make(map[string]string),
	}
}

func (t *Table) alloc(kind Kind) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := len(t.words)
	t.words = append(t.words, word{kind: kind})
	if kind == KindLong {
		t.words = append(t.words, word{kind: KindNone})
	}
	return idx
}

func (t *Table) AllocInt() int     { return t.alloc(KindInt) }
func (t *Table) AllocLong() int    { return t.alloc(KindLong) }
func (t *Table) AllocAddress() int { return t.alloc(KindAddress) }
func (t *Table) AllocObject() int  { return t.alloc(KindObject) }
func (t *Table) AllocMethod() int  { return t.alloc(KindMethod) }

// Alloc allocates a slot of the given kind.
func (t *Table) Alloc(kind Kind) (int, error) {
	switch kind {
	case KindInt, KindLong, KindAddress, KindObject, KindMethod:
		return t.alloc(kind), nil
	default:
		return -1, fmt.Errorf("statics: cannot allocate slot of kind %s", kind)
	}
}

// Intern returns the canonical copy of s. Equal literals from different
// classes share one backing string.
func (t *Table) Intern(s string) string {
	t.mu.RLock()
	if v, ok := t.strings[s]; ok {
		t.mu.RUnlock()
		return v
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.strings[s]; ok {
		return v
	}
	t.strings[s] = s
	return s
}

// AllocString allocates an object slot holding the interned literal s.
func (t *Table) AllocString(s string) int {
	v := t.Intern(s)
	idx := t.AllocObject()
	t.SetObject(idx, v)
	return idx
}

func (t *Table) set(idx int, kind Kind, bits uint64, ref any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.slot(idx, kind)
	w.bits = bits
	w.ref = ref
}

// slot panics on an index out of range or a kind mismatch.
func (t *Table) slot(idx int, kind Kind) *word {
	if idx < 0 || idx >= len(t.words) {
		panic(fmt.Sprintf("statics: slot %d out of range (len %d)", idx, len(t.words)))
	}
	w := &t.words[idx]
	if w.kind != kind {
		panic(fmt.Sprintf("statics: slot %d is %s, not %s", idx, w.kind, kind))
	}
	return w
}

func (t *Table) SetInt(idx int, v int32)       { t.set(idx, KindInt, uint64(uint32(v)), nil) }
func (t *Table) SetLong(idx int, v int64)      { t.set(idx, KindLong, uint64(v), nil) }
func (t *Table) SetAddress(idx int, v uint64)  { t.set(idx, KindAddress, v, nil) }
func (t *Table) SetObject(idx int, v any)      { t.set(idx, KindObject, 0, v) }
func (t *Table) SetMethod(idx int, method any) { t.set(idx, KindMethod, 0, method) }

func (t *Table) get(idx int, kind Kind) word {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return *t.slot(idx, kind)
}

func (t *Table) Int(idx int) int32      { return int32(uint32(t.get(idx, KindInt).bits)) }
func (t *Table) Long(idx int) int64     { return int64(t.get(idx, KindLong).bits) }
func (t *Table) Address(idx int) uint64 { return t.get(idx, KindAddress).bits }
func (t *Table) Object(idx int) any     { return t.get(idx, KindObject).ref }
func (t *Table) Method(idx int) any     { return t.get(idx, KindMethod).ref }

// Kind returns the kind of the slot starting at idx, or KindNone for the
// second word of a long slot or an index past the end.
func (t *Table) Kind(idx int) Kind {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if idx < 0 || idx >= len(t.words) {
		return KindNone
	}
	return t.words[idx].kind
}

// Len is the number of words in use.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.words)
}

// Counts tallies allocated slots by kind.
func (t *Table) Counts() map[Kind]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[Kind]int)
	for _, w := range t.words {
		if w.kind != KindNone {
			counts[w.kind]++
		}
	}
	return counts
}
