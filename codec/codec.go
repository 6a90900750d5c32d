// Package codec defines the payload codec contract shared by the pod
// protocol's three interchangeable wire formats (EDN, JSON, Transit+JSON).
// A Codec converts between the wire string carried in an envelope's
// value-bearing fields (args, value, ex-data, var meta) and the in-memory
// value domain: nil, bool, string, int64, float64, []any and map[string]any.
package codec

import "fmt"

// Codec reads and writes the value-carrying string fields of an envelope.
// An instance is bound to one pod for its whole lifetime; EDN instances
// additionally carry the pod's tag readers (see TagReader).
type Codec interface {
	// Name reports the wire format name as advertised in a describe reply
	// ("edn", "json", "transit+json").
	Name() string
	Read(s string) (any, error)
	Write(v any) (string, error)
}

// TagReader transforms the value of an EDN tagged literal (e.g. #my/tag).
// The pod core never constructs these itself: load_pod's caller supplies
// them ready-made, keyed by tag symbol, in pod.LoadOpts.Tags. The describe
// reply's "readers" map is not read.
type TagReader func(tagged any) (any, error)

// Error is returned by a Codec when a payload fails to decode or encode,
// or when an EDN reader tag has no registered handler. It corresponds to
// the *codec* error taxon.
type Error struct {
	Op  string // "read" or "write"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func readErr(err error) error  { return &Error{Op: "read", Err: err} }
func writeErr(err error) error { return &Error{Op: "write", Err: err} }

// ReadErr wraps err as a read-side codec error.
func ReadErr(err error) error { return readErr(err) }

// WriteErr wraps err as a write-side codec error.
func WriteErr(err error) error { return writeErr(err) }
