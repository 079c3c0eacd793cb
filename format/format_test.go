package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/dhamidi/jload/classfile"
	"github.com/dhamidi/jload/classfile/classgen"
	"github.com/dhamidi/jload/classmgr"
	"github.com/dhamidi/jload/selector"
	"github.com/dhamidi/jload/statics"
)

func pointType(t *testing.T) *classmgr.Type {
	t.Helper()
	b := classgen.New("demo/Point", "java/lang/Object").Interface("java/io/Serializable")
	b.Field(classfile.AccPrivate, "x", "I")
	b.Field(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "ORIGIN", "J", b.ConstantValue(b.Long(0)))
	b.Method(classfile.AccPublic, "<init>", "()V", b.Code(classgen.Code{
		MaxStack:  1,
		MaxLocals: 1,
		Code:      []byte{0x2a, 0xb1},
	}))
	b.Method(classfile.AccPublic, "length", "()D")

	data := b.Bytes()
	d := classmgr.NewDecoder(statics.NewTable(), selector.NewRegistry())
	typ, err := d.Decode(data, 0, len(data), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return typ
}

func TestLineEncoder(t *testing.T) {
	var buf bytes.Buffer
	if err := NewLineEncoder(&buf).Encode(pointType(t)); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []string{
		"class\tdemo/Point\tjava/lang/Object\tpublic\t4",
		"implements\tjava/io/Serializable",
		"field\tx\tI\tprivate\toffset=0",
		"field\tORIGIN\tJ\tpublic,static,final\tslot=0:long",
		"method\t<init>\t()V\tpublic\tspecial\t1\t2\t-",
		"method\tlength\t()D\tpublic\tinstance\t1\t3\t0",
	}
	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestJSONEncoder(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONEncoder(&buf).Encode(pointType(t)); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got typeSummary
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got.Name != "demo/Point" || got.Kind != "class" || got.Version.Major != 52 {
		t.Errorf("header = %s %s %d", got.Name, got.Kind, got.Version.Major)
	}
	if len(got.Fields) != 2 || got.Fields[0].Offset == nil || got.Fields[1].Slot == nil {
		t.Fatalf("fields = %+v", got.Fields)
	}
	if got.Fields[1].SlotKind != "long" {
		t.Errorf("ORIGIN slot kind = %q, want long", got.Fields[1].SlotKind)
	}
	if len(got.Methods) != 2 {
		t.Fatalf("methods = %+v", got.Methods)
	}
	if code := got.Methods[0].Code; code == nil || code.Length != 2 || code.MaxLocals != 1 {
		t.Errorf("<init> code = %+v", code)
	}
	if got.Methods[0].Selector != nil {
		t.Error("constructor has a selector")
	}
	if got.Methods[1].Selector == nil {
		t.Error("instance method has no selector")
	}
}

func TestCBOREncoder(t *testing.T) {
	typ := pointType(t)

	var first, second bytes.Buffer
	if err := NewCBOREncoder(&first).Encode(typ); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := NewCBOREncoder(&second).Encode(typ); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("encoding the same type twice gave different bytes")
	}

	var got typeSummary
	if err := cbor.Unmarshal(first.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Name != "demo/Point" || got.ObjectSize != 4 || len(got.Methods) != 2 {
		t.Errorf("decoded summary = %+v", got)
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "line", "json", "cbor"} {
		if _, err := New(name, &bytes.Buffer{}); err != nil {
			t.Errorf("New(%q): %v", name, err)
		}
	}
	if _, err := New("xml", &bytes.Buffer{}); err == nil {
		t.Error("New(xml) succeeded")
	}
}
