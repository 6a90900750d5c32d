// Package transit is the pod protocol's optional "transit+json" payload
// codec. No Transit implementation exists anywhere in the retrieval pack,
// so none is vendored here: a pod that advertises transit+json in its
// describe reply fails to load with a *codec-unsupported* error (spec.md
// §4.2), unless the caller supplies its own codec.Codec through
// pod.LoadOpts in place of this package's stub.
package transit

import "errors"

// ErrUnsupported is returned by New and by every Codec method. The pod
// package does not use this package: it reports a transit+json pod with no
// caller-supplied codec as a *codec-unsupported* load_pod failure itself.
var ErrUnsupported = errors.New("transit+json codec is not available")

// Codec is a placeholder satisfying codec.Codec's shape so callers can type
// check against it; every method fails with ErrUnsupported.
type Codec struct{}

// New always fails: see package doc.
func New() (*Codec, error) {
	return nil, ErrUnsupported
}

func (c *Codec) Name() string { return "transit+json" }

func (c *Codec) Read(string) (any, error) {
	return nil, ErrUnsupported
}

func (c *Codec) Write(any) (string, error) {
	return "", ErrUnsupported
}
