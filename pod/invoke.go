package pod

import (
	"context"
	"strings"

	"github.com/judepayne/gopods/bencode"
)

// Invoke calls a qualified var ("ns/name") synchronously, blocking for its
// single resolved value or error. It is the one-shot half of spec.md
// §4.4's waiter split; for a var that streams multiple values, use
// InvokeStreaming instead.
func (p *Pod) Invoke(ctx context.Context, qualifiedVar string, args []any) (any, error) {
	f := newFuture()
	id, err := p.startInvoke(qualifiedVar, args, f)
	if err != nil {
		return nil, err
	}

	value, err := f.Wait(ctx)
	if err == context.DeadlineExceeded || err == context.Canceled {
		p.reg.discard(id)
		return nil, TimeoutError(id)
	}
	return value, err
}

// InvokeStreaming calls a qualified var and delivers every reply to w
// asynchronously instead of blocking the caller. It returns the
// correlation id assigned to the call.
func (p *Pod) InvokeStreaming(qualifiedVar string, args []any, w *Streaming) (string, error) {
	return p.startInvoke(qualifiedVar, args, w)
}

func (p *Pod) startInvoke(qualifiedVar string, args []any, w Waiter) (string, error) {
	p.stateMu.Lock()
	terminated := p.terminated
	p.stateMu.Unlock()
	if terminated {
		return "", PodTerminatedError(p.ID)
	}

	ns, name, err := splitQualified(qualifiedVar)
	if err != nil {
		return "", err
	}
	if _, ok := p.Namespaces[ns]; !ok {
		return "", ResolverError("no such namespace: "+ns, nil)
	}
	if _, ok := p.Namespaces[ns].Vars[name]; !ok {
		return "", ResolverError("no such var: "+qualifiedVar, nil)
	}

	encodedArgs, err := p.codec.Write(args)
	if err != nil {
		return "", CodecError("encoding invoke args", err)
	}

	id := p.reg.register(w)
	env := bencode.Dict{
		"op":   []byte("invoke"),
		"id":   []byte(id),
		"var":  []byte(qualifiedVar),
		"args": []byte(encodedArgs),
	}
	if err := p.writeEnvelope(env); err != nil {
		p.reg.discard(id)
		return "", TransportError("writing invoke envelope", err)
	}
	return id, nil
}

// LoadNS loads (or returns the already-cached) namespace for name. A
// second call for a namespace already populated from the describe
// handshake or a prior LoadNS returns the cached *Namespace without a
// second round trip to the pod, mirroring pythonpods.py's
// load_and_expose_namespace short-circuit.
func (p *Pod) LoadNS(ctx context.Context, name string) (*Namespace, error) {
	if ns, ok := p.Namespaces[name]; ok {
		return ns, nil
	}

	f := newFuture()
	id := p.reg.register(f)
	env := bencode.Dict{
		"op": []byte("load-ns"),
		"id": []byte(id),
		"ns": []byte(name),
	}
	if err := p.writeEnvelope(env); err != nil {
		p.reg.discard(id)
		return nil, TransportError("writing load-ns envelope", err)
	}

	value, err := f.Wait(ctx)
	if err == context.DeadlineExceeded || err == context.Canceled {
		p.reg.discard(id)
		return nil, TimeoutError(id)
	}
	if err != nil {
		return nil, err
	}

	ns, ok := value.(*Namespace)
	if !ok {
		return nil, HandshakeError("load-ns reply did not resolve to a namespace", nil)
	}
	ns.Deferred = false
	p.Namespaces[name] = ns
	delete(p.pendingNamespaces, name)
	return ns, nil
}

func splitQualified(qualifiedVar string) (ns, name string, err error) {
	i := strings.LastIndex(qualifiedVar, "/")
	if i <= 0 || i == len(qualifiedVar)-1 {
		return "", "", ResolverError("var must be namespace-qualified as ns/name: "+qualifiedVar, nil)
	}
	return qualifiedVar[:i], qualifiedVar[i+1:], nil
}
