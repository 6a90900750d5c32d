// Package jsoncodec adapts encoding/json to the codec.Codec contract. It is
// the pod protocol's "json" format and the fallback codec used to decode
// ex-data/value fields for pods that negotiate json in their describe reply.
package jsoncodec

import (
	"encoding/json"

	"github.com/judepayne/gopods/codec"
)

// Codec implements codec.Codec over encoding/json. There is no third-party
// JSON library anywhere in the retrieval pack (the teacher and the rest of
// the corpus all reach for the standard library's encoding/json for plain
// JSON), so this one does too.
type Codec struct{}

// New returns a ready-to-use JSON codec.
func New() *Codec { return &Codec{} }

func (c *Codec) Name() string { return "json" }

func (c *Codec) Read(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, codec.ReadErr(err)
	}
	return v, nil
}

func (c *Codec) Write(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", codec.WriteErr(err)
	}
	return string(b), nil
}
