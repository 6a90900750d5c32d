package pod

import "fmt"

// Error is the common shape of every pod error taxon in spec.md §7: a
// message plus an optional data map. All taxa share this one type; callers
// extract it with errors.As and discriminate on the Taxon field instead of
// matching message strings (unlike the teacher's own vmclient.go, which is
// flagged there with a "// TODO fix" for doing exactly that).
type Error struct {
	Taxon   string
	Message string
	Data    map[string]any
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pod: %s: %s: %v", e.Taxon, e.Message, e.Err)
	}
	return fmt.Sprintf("pod: %s: %s", e.Taxon, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(taxon, message string, err error) *Error {
	return &Error{Taxon: taxon, Message: message, Err: err}
}

// ResolverError: version/path mutually required or exclusive; resolver
// failure.
func ResolverError(message string, err error) *Error {
	return newError("resolver", message, err)
}

// HandshakeError: child exited or mis-replied before describe completed.
func HandshakeError(message string, err error) *Error {
	return newError("handshake", message, err)
}

// TransportError: envelope framing corrupt, or stream closed unexpectedly.
func TransportError(message string, err error) *Error {
	return newError("transport", message, err)
}

// CodecError: payload failed to decode/encode, or a missing EDN reader tag.
func CodecError(message string, err error) *Error {
	return newError("codec", message, err)
}

// PodError: the subprocess reported an "error" status; ExMessage and
// ExData are attached verbatim.
func PodError(exMessage string, exData map[string]any) *Error {
	return &Error{Taxon: "pod", Message: exMessage, Data: exData}
}

// PodTerminatedError: the pod was destroyed while a call was outstanding.
func PodTerminatedError(podID string) *Error {
	return &Error{Taxon: "pod-terminated", Message: fmt.Sprintf("pod %s terminated", podID)}
}

// PodCrashedError: the pod's read stream ended before destroy was
// requested.
func PodCrashedError(podID string, err error) *Error {
	return newError("pod-crashed", fmt.Sprintf("pod %s crashed", podID), err)
}

// TimeoutError: an optional per-invoke deadline expired.
func TimeoutError(correlationID string) *Error {
	return &Error{Taxon: "timeout", Message: fmt.Sprintf("invoke %s timed out", correlationID)}
}

// CodecUnsupportedError: a pod advertised a format this build has no
// codec for (transit+json with no registered implementation).
func CodecUnsupportedError(format string) *Error {
	return &Error{Taxon: "codec-unsupported", Message: fmt.Sprintf("no codec available for format %q", format)}
}
