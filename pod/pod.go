// Package pod implements the core of a babashka-style pod client: it
// launches a subprocess speaking the pod wire protocol, performs the
// describe handshake, and exposes the subprocess's advertised vars as
// locally callable procedures multiplexed over one framed stream.
package pod

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/judepayne/gopods/bencode"
	"github.com/judepayne/gopods/codec"
	"github.com/judepayne/gopods/codec/edn"
	"github.com/judepayne/gopods/codec/jsoncodec"
	"github.com/judepayne/gopods/internal/syncx"
	"github.com/judepayne/gopods/pod/transport"
)

// LoadOpts configures LoadPod. Path and Args describe the subprocess to
// launch; a Resolver-driven lookup (version-qualified pod names, as the
// source's resolve_pod supports) is explicitly out of scope here (spec.md
// §2 Non-goals) — callers that want it resolve Path themselves first.
type LoadOpts struct {
	Path string
	Args []string
	Env  []string

	Mode              transport.Mode
	SocketDir         string
	SocketWaitTimeout time.Duration

	// HandshakeTimeout bounds how long LoadPod waits for the describe
	// reply before giving up with a handshake error.
	HandshakeTimeout time.Duration

	// Codecs lets a caller register additional payload codecs beyond the
	// built-in json/edn pair, keyed by the describe reply's "format"
	// string (e.g. a caller-supplied transit+json implementation).
	Codecs map[string]codec.Codec

	// Tags registers EDN reader-tag handlers, passed through to the edn
	// codec if it ends up being selected.
	Tags map[string]codec.TagReader

	Logger *logrus.Logger
}

func (o LoadOpts) socketWaitTimeout() time.Duration {
	if o.SocketWaitTimeout > 0 {
		return o.SocketWaitTimeout
	}
	return 5 * time.Second
}

func (o LoadOpts) handshakeTimeout() time.Duration {
	if o.HandshakeTimeout > 0 {
		return o.HandshakeTimeout
	}
	return 10 * time.Second
}

// Pod is one running subprocess and everything needed to call into it:
// the registered namespaces from its describe reply, the call registry,
// and the background processor reading its replies.
type Pod struct {
	ID         string
	Namespaces map[string]*Namespace
	// Ops is the set of op names the describe reply advertised support
	// for (e.g. "describe", "invoke", "load-ns", "shutdown"), read by
	// Destroy to decide whether a graceful shutdown op is possible
	// (spec.md §3, §4.6).
	Ops map[string]bool

	writeMu syncx.Mutex
	stream  transport.Stream
	launch  *transport.Launched
	reg     *registry
	proc    *processor
	codec   codec.Codec
	log     *logrus.Entry

	// pendingNamespaces holds the describe reply's defer=true namespaces,
	// stubbed but not yet populated with vars and not yet present in
	// Namespaces — they are only "announced" by a successful LoadNS.
	pendingNamespaces map[string]*Namespace

	stateMu    syncx.Mutex
	terminated bool
	crashErr   error
}

// LoadPod launches the subprocess described by opts, performs the describe
// handshake, and returns a Pod ready for Invoke/LoadNS calls. Grounded on
// pythonpods.py's load_pod/run_pod/describe_pod sequence.
func LoadPod(ctx context.Context, opts LoadOpts) (*Pod, error) {
	launch, err := launchTransport(ctx, opts)
	if err != nil {
		return nil, ResolverError("launching pod subprocess", err)
	}
	return loadPodFromStream(ctx, launch.Stream, launch, opts)
}

// loadPodFromStream runs the describe handshake over an already-connected
// stream. It is split out from LoadPod so tests can drive the handshake
// over an in-memory pipe instead of a real subprocess.
func loadPodFromStream(ctx context.Context, stream transport.Stream, launch *transport.Launched, opts LoadOpts) (*Pod, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	dec := bencode.NewDecoder(stream)

	// cleanup closes the stream and kills the launched child, if any, on a
	// failed load.
	cleanup := func() {
		_ = stream.Close()
		if launch != nil && launch.Cmd != nil && launch.Cmd.Process != nil {
			_ = launch.Cmd.Process.Kill()
		}
	}

	describeEnv, err := doHandshake(ctx, stream, dec, opts)
	if err != nil {
		cleanup()
		return nil, err
	}

	resolved, pending, firstNSName, err := namespacesFromDescribe(describeEnv)
	if err != nil {
		cleanup()
		return nil, err
	}

	// spec.md §4.6: pod_id is computed from the first advertised
	// namespace's name when the describe reply has one, else a fresh
	// UUID (spec.md §8 scenario 1).
	podID := firstNSName
	if podID == "" {
		podID = uuid.NewString()
	}
	log := logger.WithField("pod_id", podID)

	c, err := selectCodec(describeEnv, opts)
	if err != nil {
		cleanup()
		return nil, err
	}

	p := &Pod{
		ID:                podID,
		Namespaces:        resolved,
		Ops:               opsFromDescribe(describeEnv),
		stream:            stream,
		launch:            launch,
		reg:               newRegistry(0),
		codec:             c,
		log:               log,
		pendingNamespaces: pending,
	}

	p.proc = newProcessor(dec, p.reg, p.codec, log, p.onStreamEnd)
	go p.proc.run()

	registerPod(p)
	return p, nil
}

func launchTransport(ctx context.Context, opts LoadOpts) (*transport.Launched, error) {
	switch opts.Mode {
	case transport.ModeSocket:
		return transport.LaunchSocket(ctx, opts.Path, opts.Args, opts.Env, opts.SocketDir, opts.socketWaitTimeout())
	default:
		return transport.LaunchStdio(opts.Path, opts.Args, opts.Env)
	}
}

// doHandshake sends the describe op and blocks for its single reply,
// outside of the normal registry/processor machinery since neither the
// Pod nor its processor goroutine exist yet at this point (spec.md §4.6's
// "Handshake" lifecycle step, grounded on pythonpods.py's describe_pod).
func doHandshake(ctx context.Context, stream transport.Stream, dec *bencode.Decoder, opts LoadOpts) (bencode.Dict, error) {
	if err := bencode.WriteEnvelope(stream, bencode.Dict{"op": []byte("describe")}); err != nil {
		return nil, HandshakeError("writing describe op", err)
	}

	type result struct {
		env bencode.Dict
		err error
	}
	done := make(chan result, 1)
	go func() {
		env, err := dec.Decode()
		done <- result{env: env, err: err}
	}()

	timeout := opts.handshakeTimeout()
	select {
	case r := <-done:
		if r.err != nil {
			return nil, HandshakeError("reading describe reply", r.err)
		}
		return r.env, nil
	case <-ctx.Done():
		return nil, HandshakeError("describe handshake canceled", ctx.Err())
	case <-time.After(timeout):
		return nil, HandshakeError(fmt.Sprintf("describe handshake timed out after %s", timeout), nil)
	}
}

// opsFromDescribe reads the describe reply's "ops" field into a set. The
// protocol represents it as a dict keyed by op name (each value an
// op-specific metadata dict, currently unused here); a plain list of op
// name strings is also accepted for robustness.
func opsFromDescribe(describeEnv bencode.Dict) map[string]bool {
	ops := make(map[string]bool)
	if opsDict, ok := describeEnv.GetDict("ops"); ok {
		for name := range opsDict {
			ops[name] = true
		}
		return ops
	}
	if opsList, ok := describeEnv.GetList("ops"); ok {
		for _, v := range opsList {
			if b, ok := v.([]byte); ok {
				ops[string(b)] = true
			}
		}
	}
	return ops
}

func selectCodec(describeEnv bencode.Dict, opts LoadOpts) (codec.Codec, error) {
	format, ok := describeEnv.GetOptionalString("format")
	if !ok || format == "" {
		format = "edn"
	}

	if c, ok := opts.Codecs[format]; ok {
		return c, nil
	}

	switch format {
	case "json":
		return jsoncodec.New(), nil
	case "edn":
		c := edn.New()
		for tag, fn := range opts.Tags {
			c.Tags[tag] = fn
		}
		return c, nil
	default:
		return nil, CodecUnsupportedError(format)
	}
}

// namespacesFromDescribe parses the describe reply's "namespaces" list into
// two maps: resolved (non-deferred namespaces, vars populated) and pending
// (defer=true namespaces, stubbed with empty Vars, not yet announced). It
// also returns the first namespace's name in describe-reply order, deferred
// or not, for pod_id derivation (spec.md §4.6).
func namespacesFromDescribe(describeEnv bencode.Dict) (resolved, pending map[string]*Namespace, firstName string, err error) {
	rawNamespaces, ok := describeEnv.GetList("namespaces")
	if !ok {
		return nil, nil, "", HandshakeError("describe reply missing namespaces", nil)
	}

	resolved = make(map[string]*Namespace)
	pending = make(map[string]*Namespace)

	for i, rawNS := range rawNamespaces {
		nsDict, ok := rawNS.(bencode.Dict)
		if !ok {
			return nil, nil, "", HandshakeError("describe namespace entry is not a dict", nil)
		}
		name, err := nsDict.GetString("name")
		if err != nil {
			return nil, nil, "", HandshakeError("describe namespace missing name", err)
		}
		if i == 0 {
			firstName = name
		}

		if nsDict.GetBool("defer") {
			stub := newNamespace(name)
			stub.Deferred = true
			pending[name] = stub
			continue
		}

		rawVars, _ := nsDict.GetList("vars")
		vars := make([]any, 0, len(rawVars))
		for _, rv := range rawVars {
			vars = append(vars, bencodeVarToAny(rv))
		}
		ns, err := namespaceFromDescribe(name, vars)
		if err != nil {
			return nil, nil, "", err
		}
		resolved[name] = ns
	}
	return resolved, pending, firstName, nil
}

// bencodeVarToAny converts a decoded bencode var-entry dict into a plain
// map[string]any for namespaceFromDescribe to read. bencode.Value never
// holds a native Go bool (booleans like "async" arrive as byte-string
// literals "true"/"false"), so only the []byte->string conversion applies.
func bencodeVarToAny(v bencode.Value) any {
	dict, ok := v.(bencode.Dict)
	if !ok {
		return v
	}
	out := make(map[string]any, len(dict))
	for k, val := range dict {
		if b, ok := val.([]byte); ok {
			out[k] = string(b)
		} else {
			out[k] = val
		}
	}
	return out
}

// onStreamEnd is the processor's notification that the read loop ended. It
// fails every outstanding call and marks the pod terminated or crashed
// depending on whether Destroy was already in flight.
func (p *Pod) onStreamEnd(err error) {
	p.stateMu.Lock()
	alreadyTerminated := p.terminated
	if !alreadyTerminated {
		if err != nil {
			p.crashErr = PodCrashedError(p.ID, err)
		} else {
			p.crashErr = PodTerminatedError(p.ID)
		}
	}
	p.terminated = true
	failure := p.crashErr
	p.stateMu.Unlock()

	for _, w := range p.reg.drain() {
		w.deliverError(failure)
		w.noteDone()
	}

	if err != nil {
		p.log.WithError(err).Warn("pod stream ended unexpectedly")
	}
	unregisterPod(p.ID)
}

func (p *Pod) writeEnvelope(d bencode.Dict) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return bencode.WriteEnvelope(p.stream, d)
}
