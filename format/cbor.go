package format

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/dhamidi/jload/classmgr"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("format: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// CBOREncoder writes the same summary as JSONEncoder in canonical CBOR, so
// equal types always encode to equal bytes.
type CBOREncoder struct {
	w   io.Writer
	typ *classmgr.Type
}

func NewCBOREncoder(w io.Writer) *CBOREncoder {
	return &CBOREncoder{w: w}
}

func (e *CBOREncoder) Encode(t *classmgr.Type) error {
	e.typ = t
	data, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(data)
	return err
}

func (e *CBOREncoder) MarshalText() ([]byte, error) {
	return cborEncMode.Marshal(summarize(e.typ))
}

// New returns the encoder registered under name: json, line or cbor.
func New(name string, w io.Writer) (Encoder, error) {
	switch name {
	case "json":
		return NewJSONEncoder(w), nil
	case "line", "":
		return NewLineEncoder(w), nil
	case "cbor":
		return NewCBOREncoder(w), nil
	default:
		return nil, fmt.Errorf("unknown format %q", name)
	}
}
