package pod

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/judepayne/gopods/bencode"
	"github.com/judepayne/gopods/codec"
)

// processor is the single reader of a pod's envelope stream (spec.md §4.5):
// it owns the bencode.Decoder exclusively and demultiplexes each decoded
// reply to the Waiter registered under its "id" key. Grounded on
// pythonpods.py's processor(), which runs as a daemon thread doing exactly
// this dispatch.
type processor struct {
	dec   *bencode.Decoder
	reg   *registry
	log   *logrus.Entry
	codec codec.Codec

	// onStreamEnd fires once, from the processor's own goroutine, when the
	// read loop ends for any reason (EOF, decode error, or explicit stop).
	// The owning Pod uses it to fail every still-outstanding Waiter and
	// flip its own state to terminated/crashed.
	onStreamEnd func(err error)
}

func newProcessor(dec *bencode.Decoder, reg *registry, c codec.Codec, log *logrus.Entry, onStreamEnd func(error)) *processor {
	return &processor{dec: dec, reg: reg, codec: c, log: log, onStreamEnd: onStreamEnd}
}

// run is the read loop; call it in its own goroutine. It returns once the
// stream ends, after having already invoked onStreamEnd.
func (p *processor) run() {
	for {
		env, err := p.dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.onStreamEnd(nil)
			} else {
				p.onStreamEnd(TransportError("pod stream ended unexpectedly", err))
			}
			return
		}
		p.dispatch(env)
	}
}

// dispatch handles one decoded envelope. Envelopes without an "id" (plain
// out/err forwarding envelopes that some pods emit outside of a call, per
// the source's handling of stray output) are logged and dropped: there is
// no waiter to deliver them to.
func (p *processor) dispatch(env bencode.Dict) {
	id, hasID := env.GetOptionalString("id")
	if !hasID || id == "" {
		p.logOutOfBand(env)
		return
	}

	w, ok := p.reg.lookup(id)
	if !ok {
		p.log.WithField("id", id).Warn("pod: reply for unknown or already-resolved call, dropping")
		return
	}

	p.logOutOfBand(env)

	status, _ := env.GetList("status")
	done := statusContains(status, "done") || statusContains(status, "error")

	switch {
	case statusContains(status, "error"):
		w.deliverError(podErrorFromEnvelope(env, p.codec))
	case hasNamespaceReply(env):
		ns, err := namespaceFromLoadNSEnvelope(env)
		if err != nil {
			w.deliverError(err)
		} else {
			w.deliverValue(ns)
		}
	default:
		if raw, hasValue := env.GetOptionalString("value"); hasValue && raw != "" {
			value, err := p.codec.Read(raw)
			if err != nil {
				w.deliverError(CodecError("decoding reply value", err))
			} else {
				w.deliverValue(value)
			}
		}
	}

	if done {
		w.noteDone()
		p.reg.discard(id)
	}
}

// logOutOfBand forwards any "out"/"err" string fields on env to this
// process's own logger, matching the source's behavior of echoing a pod's
// out/err envelope fields alongside its own stdout/stderr forwarding.
func (p *processor) logOutOfBand(env bencode.Dict) {
	if out, ok := env.GetOptionalString("out"); ok && out != "" {
		p.log.Info(out)
	}
	if errText, ok := env.GetOptionalString("err"); ok && errText != "" {
		p.log.Warn(errText)
	}
}

// hasNamespaceReply reports whether env is a load-ns reply: {id, name,
// vars[...], status[done]}, distinct from an invoke reply's "value" field
// (spec.md §6's wire table — load-ns replies never carry a "value").
func hasNamespaceReply(env bencode.Dict) bool {
	_, hasVars := env.GetList("vars")
	_, hasName := env.GetOptionalString("name")
	return hasVars && hasName
}

// namespaceFromLoadNSEnvelope builds a *Namespace from a load-ns reply
// envelope's "name"/"vars" fields.
func namespaceFromLoadNSEnvelope(env bencode.Dict) (*Namespace, error) {
	name, _ := env.GetOptionalString("name")
	rawVars, _ := env.GetList("vars")
	vars := make([]any, 0, len(rawVars))
	for _, rv := range rawVars {
		vars = append(vars, bencodeVarToAny(rv))
	}
	return namespaceFromDescribe(name, vars)
}

func statusContains(status []bencode.Value, want string) bool {
	for _, s := range status {
		if b, ok := s.([]byte); ok && string(b) == want {
			return true
		}
	}
	return false
}

// podErrorFromEnvelope builds a PodError from an "error" status envelope's
// "ex-message"/"ex-data" fields, per spec.md §7. A string "ex-data" is
// decoded with the pod's payload codec; a bencode dict is taken as is.
func podErrorFromEnvelope(env bencode.Dict, c codec.Codec) error {
	msg, _ := env.GetOptionalString("ex-message")
	if msg == "" {
		msg = "pod reported an error"
	}
	var data map[string]any
	if raw, ok := env.GetOptionalString("ex-data"); ok && raw != "" {
		if v, err := c.Read(raw); err == nil {
			data, _ = v.(map[string]any)
		}
	} else if dict, ok := env.GetDict("ex-data"); ok {
		data = dictToAny(dict)
	}
	return PodError(msg, data)
}

func dictToAny(d bencode.Dict) map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
