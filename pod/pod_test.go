package pod

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/judepayne/gopods/bencode"
)

// fakeStream wires a client-facing transport.Stream to an in-process fake
// pod goroutine driven by the test, so Pod's handshake/invoke machinery can
// be exercised without launching a real subprocess.
type fakeStream struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (f *fakeStream) Read(b []byte) (int, error)  { return f.r.Read(b) }
func (f *fakeStream) Write(b []byte) (int, error) { return f.w.Write(b) }
func (f *fakeStream) Close() error {
	_ = f.r.Close()
	return f.w.Close()
}

// newFakePod returns the client-side stream and a decoder/writer pair for
// the fake pod side, already wired to each other.
func newFakePod() (client *fakeStream, podDec *bencode.Decoder, podWrite func(bencode.Dict) error) {
	clientReadsFrom, podWritesTo := io.Pipe()
	podReadsFrom, clientWritesTo := io.Pipe()

	client = &fakeStream{r: clientReadsFrom, w: clientWritesTo}
	podDec = bencode.NewDecoder(podReadsFrom)
	podWrite = func(d bencode.Dict) error {
		return bencode.WriteEnvelope(podWritesTo, d)
	}
	return client, podDec, podWrite
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// runFakeEchoPod answers one describe op with a single namespace/var, then
// answers every invoke by echoing its decoded args back as the value.
func runFakeEchoPod(t *testing.T, dec *bencode.Decoder, write func(bencode.Dict) error) {
	t.Helper()
	go func() {
		for {
			env, err := dec.Decode()
			if err != nil {
				return
			}
			op, _ := env.GetOptionalString("op")
			switch op {
			case "describe":
				_ = write(bencode.Dict{
					"format": []byte("json"),
					"namespaces": []bencode.Value{
						bencode.Dict{
							"name": []byte("pod.test"),
							"vars": []bencode.Value{
								bencode.Dict{"name": []byte("echo")},
							},
						},
					},
				})
			case "invoke":
				id, _ := env.GetOptionalString("id")
				argsStr, _ := env.GetOptionalString("args")
				_ = write(bencode.Dict{
					"id":     []byte(id),
					"value":  []byte(argsStr),
					"status": []bencode.Value{[]byte("done")},
				})
			case "load-ns":
				id, _ := env.GetOptionalString("id")
				ns, _ := env.GetOptionalString("ns")
				_ = write(bencode.Dict{
					"id":   []byte(id),
					"name": []byte(ns),
					"vars": []bencode.Value{
						bencode.Dict{"name": []byte("loaded")},
					},
					"status": []bencode.Value{[]byte("done")},
				})
			case "shutdown":
				return
			}
		}
	}()
}

func TestLoadPodHandshakeAndInvoke(t *testing.T) {
	client, podDec, podWrite := newFakePod()
	runFakeEchoPod(t, podDec, podWrite)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := loadPodFromStream(ctx, client, nil, LoadOpts{Logger: testLogger()})
	require.NoError(t, err)
	defer p.Destroy()

	require.Contains(t, p.Namespaces, "pod.test")
	require.Contains(t, p.Namespaces["pod.test"].Vars, "echo")

	value, err := p.Invoke(ctx, "pod.test/echo", []any{"hello"})
	require.NoError(t, err)
	assert.Equal(t, []any{"hello"}, value)
}

func TestInvokeUnknownVarIsResolverError(t *testing.T) {
	client, podDec, podWrite := newFakePod()
	runFakeEchoPod(t, podDec, podWrite)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := loadPodFromStream(ctx, client, nil, LoadOpts{Logger: testLogger()})
	require.NoError(t, err)
	defer p.Destroy()

	_, err = p.Invoke(ctx, "pod.test/missing", nil)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "resolver", perr.Taxon)
}

func TestLoadNSCachesAfterFirstCall(t *testing.T) {
	client, podDec, podWrite := newFakePod()
	loadNSCalls := 0
	go func() {
		for {
			env, err := podDec.Decode()
			if err != nil {
				return
			}
			op, _ := env.GetOptionalString("op")
			switch op {
			case "describe":
				_ = podWrite(bencode.Dict{
					"format":     []byte("json"),
					"namespaces": []bencode.Value{},
				})
			case "load-ns":
				loadNSCalls++
				id, _ := env.GetOptionalString("id")
				ns, _ := env.GetOptionalString("ns")
				_ = podWrite(bencode.Dict{
					"id":   []byte(id),
					"name": []byte(ns),
					"vars": []bencode.Value{
						bencode.Dict{"name": []byte("v")},
					},
					"status": []bencode.Value{[]byte("done")},
				})
			case "shutdown":
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := loadPodFromStream(ctx, client, nil, LoadOpts{Logger: testLogger()})
	require.NoError(t, err)
	defer p.Destroy()

	ns1, err := p.LoadNS(ctx, "extra")
	require.NoError(t, err)
	ns2, err := p.LoadNS(ctx, "extra")
	require.NoError(t, err)

	assert.Same(t, ns1, ns2)
	assert.Equal(t, 1, loadNSCalls)
}

func TestPodIDDerivedFromFirstNamespaceName(t *testing.T) {
	client, podDec, podWrite := newFakePod()
	runFakeEchoPod(t, podDec, podWrite)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := loadPodFromStream(ctx, client, nil, LoadOpts{Logger: testLogger()})
	require.NoError(t, err)
	defer p.Destroy()

	assert.Equal(t, "pod.test", p.ID)
}

func TestPodIDFallsBackToUUIDWithNoNamespaces(t *testing.T) {
	client, podDec, podWrite := newFakePod()
	go func() {
		for {
			env, err := podDec.Decode()
			if err != nil {
				return
			}
			op, _ := env.GetOptionalString("op")
			switch op {
			case "describe":
				_ = podWrite(bencode.Dict{
					"format":     []byte("json"),
					"namespaces": []bencode.Value{},
				})
			case "shutdown":
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := loadPodFromStream(ctx, client, nil, LoadOpts{Logger: testLogger()})
	require.NoError(t, err)
	defer p.Destroy()

	assert.NotEmpty(t, p.ID)
	assert.NotEqual(t, "", p.ID)
}

func TestDeferredNamespaceIsNotAnnouncedUntilLoadNS(t *testing.T) {
	client, podDec, podWrite := newFakePod()
	go func() {
		for {
			env, err := podDec.Decode()
			if err != nil {
				return
			}
			op, _ := env.GetOptionalString("op")
			switch op {
			case "describe":
				_ = podWrite(bencode.Dict{
					"format": []byte("json"),
					"namespaces": []bencode.Value{
						bencode.Dict{
							"name":  []byte("lazy.ns"),
							"defer": []byte("true"),
						},
					},
				})
			case "load-ns":
				id, _ := env.GetOptionalString("id")
				ns, _ := env.GetOptionalString("ns")
				_ = podWrite(bencode.Dict{
					"id":   []byte(id),
					"name": []byte(ns),
					"vars": []bencode.Value{
						bencode.Dict{"name": []byte("lazy-fn")},
					},
					"status": []bencode.Value{[]byte("done")},
				})
			case "shutdown":
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := loadPodFromStream(ctx, client, nil, LoadOpts{Logger: testLogger()})
	require.NoError(t, err)
	defer p.Destroy()

	_, announced := p.Namespaces["lazy.ns"]
	assert.False(t, announced, "deferred namespace must not be announced before LoadNS")
	require.Contains(t, p.pendingNamespaces, "lazy.ns")

	ns, err := p.LoadNS(ctx, "lazy.ns")
	require.NoError(t, err)
	assert.Contains(t, ns.Vars, "lazy-fn")

	announcedNS, announced := p.Namespaces["lazy.ns"]
	assert.True(t, announced)
	assert.Same(t, ns, announcedNS)
	assert.NotContains(t, p.pendingNamespaces, "lazy.ns")
}

func TestDestroySendsShutdownWithIDWhenOpSupported(t *testing.T) {
	client, podDec, podWrite := newFakePod()
	shutdownID := make(chan string, 1)
	go func() {
		for {
			env, err := podDec.Decode()
			if err != nil {
				return
			}
			op, _ := env.GetOptionalString("op")
			switch op {
			case "describe":
				_ = podWrite(bencode.Dict{
					"format":     []byte("json"),
					"namespaces": []bencode.Value{},
					"ops": bencode.Dict{
						"shutdown": bencode.Dict{},
					},
				})
			case "shutdown":
				id, _ := env.GetOptionalString("id")
				shutdownID <- id
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := loadPodFromStream(ctx, client, nil, LoadOpts{Logger: testLogger()})
	require.NoError(t, err)
	require.True(t, p.Ops["shutdown"])

	require.NoError(t, p.Destroy())

	select {
	case id := <-shutdownID:
		assert.NotEmpty(t, id)
	case <-time.After(2 * time.Second):
		t.Fatal("pod never received shutdown op")
	}
}

func TestDestroyFailsOutstandingCallsWithPodTerminated(t *testing.T) {
	client, podDec, podWrite := newFakePod()
	go func() {
		for {
			env, err := podDec.Decode()
			if err != nil {
				return
			}
			op, _ := env.GetOptionalString("op")
			if op == "describe" {
				_ = podWrite(bencode.Dict{
					"format":     []byte("json"),
					"namespaces": []bencode.Value{},
				})
			}
			// deliberately never reply to invoke, to exercise Destroy's drain
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := loadPodFromStream(ctx, client, nil, LoadOpts{Logger: testLogger()})
	require.NoError(t, err)

	f := newFuture()
	id := p.reg.register(f)
	_ = id

	require.NoError(t, p.Destroy())

	_, err = f.Wait(ctx)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "pod-terminated", perr.Taxon)
}
