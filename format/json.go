package format

import (
	"encoding/json"
	"io"

	"github.com/dhamidi/jload/classmgr"
)

type JSONEncoder struct {
	w   io.Writer
	typ *classmgr.Type
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

func (e *JSONEncoder) Encode(t *classmgr.Type) error {
	e.typ = t
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	text = append(text, '\n')
	_, err = e.w.Write(text)
	return err
}

func (e *JSONEncoder) MarshalText() ([]byte, error) {
	return json.MarshalIndent(summarize(e.typ), "", "  ")
}
