package pod

// Var is one function a pod advertises under a namespace in its describe
// reply (spec.md §3). Name is the bare symbol name; the qualifying
// namespace lives on the owning Namespace, not repeated here.
type Var struct {
	Name string
	// Async records the describe payload's optional "async" metadata key
	// (the literal string "true"), as in pythonpods.py. gopods does not act
	// on it: the caller picks Invoke or InvokeStreaming for each call.
	Async bool
	// CodeStr, if non-empty, is a source snippet the caller's runtime may
	// want to eval in place of calling the pod for every invocation (the
	// original's "code" var metadata); gopods does not eval it and leaves
	// interpretation to the caller.
	CodeStr string
	// ArgMeta is the var's optional "arg-meta" descriptor, carried
	// verbatim (its shape is pod-defined, not fixed by the wire protocol)
	// so a caller's invoke wrapper can thread {async, arg_meta} through
	// the same way pythonpods.py's invoke() does.
	ArgMeta any
}

// Namespace is one "ns" entry from a describe reply: a name plus the vars
// it exposes, keyed by bare var name for O(1) lookup from Invoke.
type Namespace struct {
	Name string
	Vars map[string]*Var
	// Deferred marks a namespace the describe reply advertised with
	// defer=true: its vars are not populated and the namespace is not
	// added to Pod.Namespaces until a successful LoadNS call (spec.md §3,
	// §4.6).
	Deferred bool
}

func newNamespace(name string) *Namespace {
	return &Namespace{Name: name, Vars: make(map[string]*Var)}
}

// namespaceFromDescribe builds a Namespace from one decoded "ns" dict of a
// describe reply, mirroring pythonpods.py's bencode_to_namespace /
// bencode_to_vars: each entry of the ns's "vars" list is itself a dict with
// a required "name" key and optional "async"/"code"/"arg-meta" keys.
//
// Bencode has no native boolean type, so "async" arrives as the literal
// string "true"/"false" (via bencodeVarToAny's []byte->string conversion)
// and is parsed explicitly here rather than type-asserted to bool.
func namespaceFromDescribe(nsName string, rawVars []any) (*Namespace, error) {
	ns := newNamespace(nsName)
	for _, rv := range rawVars {
		entry, ok := rv.(map[string]any)
		if !ok {
			return nil, HandshakeError("describe ns var entry is not a map", nil)
		}
		name, ok := entry["name"].(string)
		if !ok || name == "" {
			return nil, HandshakeError("describe ns var entry missing name", nil)
		}
		v := &Var{Name: name}
		if asyncStr, ok := entry["async"].(string); ok {
			v.Async = asyncStr == "true"
		}
		if code, ok := entry["code"].(string); ok {
			v.CodeStr = code
		}
		if argMeta, ok := entry["arg-meta"]; ok {
			v.ArgMeta = argMeta
		}
		ns.Vars[name] = v
	}
	return ns, nil
}
