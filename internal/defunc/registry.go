package defunc

// Scope selects between type-level and instance-level operations.
type Scope int

const (
	// ScopeInstance covers operations invoked on an instance.
	ScopeInstance Scope = iota
	// ScopeStatic covers operations invoked on the type itself.
	ScopeStatic
)

// String returns "instance" or "static".
func (s Scope) String() string {
	if s == ScopeStatic {
		return "static"
	}
	return "instance"
}

// nameSet is an insertion-ordered set of operation names.
type nameSet struct {
	order []string
	seen  map[string]struct{}
}

func (s *nameSet) add(names ...string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := s.seen[name]; ok {
			continue
		}
		s.seen[name] = struct{}{}
		s.order = append(s.order, name)
	}
}

func (s *nameSet) has(name string) bool {
	_, ok := s.seen[name]
	return ok
}

func (s *nameSet) empty() bool {
	return len(s.order) == 0
}

func (s *nameSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// TypeOption configures a Type at declaration.
type TypeOption func(*Type)

// WithParent makes the declared type read watch sets and sink through to parent
// when it has none of its own.
func WithParent(parent *Type) TypeOption {
	return func(t *Type) {
		t.parent = parent
	}
}

// WithTypeSink sets the type's output sink.
func WithTypeSink(sink Sink) TypeOption {
	return func(t *Type) {
		t.sink = sink
	}
}

// MarkInternal flags the type as part of the instrumentation machinery.
// Internal types are never audited.
func MarkInternal() TypeOption {
	return func(t *Type) {
		t.internal = true
	}
}

// Type is the per-type instrumentation configuration: watch sets for both
// scopes, an optional sink and an optional parent.
//
// All mutable fields are guarded by the owning engine's cfgMu.
type Type struct {
	engine   *Engine
	name     string
	parent   *Type
	internal bool
	sink     Sink
	static   nameSet
	instance nameSet
}

// Name returns the declared type name.
func (t *Type) Name() string {
	return t.name
}

// Parent returns the parent type or nil.
func (t *Type) Parent() *Type {
	t.engine.cfgMu.RLock()
	defer t.engine.cfgMu.RUnlock()
	return t.parent
}

// Engine returns the engine the type was declared on.
func (t *Type) Engine() *Engine {
	return t.engine
}

// Internal reports whether the type is excluded from auditing.
func (t *Type) Internal() bool {
	return t.internal
}

// Watch adds names to the watch set of scope. Duplicates and empty names are ignored.
func (t *Type) Watch(scope Scope, names ...string) *Type {
	t.engine.cfgMu.Lock()
	t.set(scope).add(names...)
	t.engine.cfgMu.Unlock()
	return t
}

// WatchMethods adds instance operation names to trace.
func (t *Type) WatchMethods(names ...string) *Type {
	return t.Watch(ScopeInstance, names...)
}

// WatchStatic adds type-level operation names to trace.
func (t *Type) WatchStatic(names ...string) *Type {
	return t.Watch(ScopeStatic, names...)
}

// Watched returns the effective watch set for scope, following the parent
// chain when the type's own set is empty.
func (t *Type) Watched(scope Scope) []string {
	t.engine.cfgMu.RLock()
	defer t.engine.cfgMu.RUnlock()

	if s := t.effective(scope); s != nil {
		return s.list()
	}
	return nil
}

// ShouldTrace reports whether an operation named name in scope would be wrapped.
// Reserved names are not considered here.
func (t *Type) ShouldTrace(scope Scope, name string) bool {
	t.engine.cfgMu.RLock()
	defer t.engine.cfgMu.RUnlock()
	return t.shouldTrace(scope, name)
}

// SetOutStream sets the sink for this type and subtypes that have none.
// A nil sink reverts to the inherited one.
func (t *Type) SetOutStream(sink Sink) {
	t.engine.cfgMu.Lock()
	t.sink = sink
	t.engine.cfgMu.Unlock()
}

// Sink returns the resolved sink: the type's own, then its ancestors', then the
// engine default.
func (t *Type) Sink() Sink {
	t.engine.cfgMu.RLock()
	defer t.engine.cfgMu.RUnlock()
	return t.resolveSink()
}

// Define registers op under name and returns the callable to use in its place.
// The result is op itself when the operation is not traced.
func (t *Type) Define(scope Scope, name string, op Op) Op {
	return t.engine.Intercept(t, scope, name, op)
}

// DefineMethod is Define for ScopeInstance.
func (t *Type) DefineMethod(name string, op Op) Op {
	return t.Define(ScopeInstance, name, op)
}

// DefineStatic is Define for ScopeStatic.
func (t *Type) DefineStatic(name string, op Op) Op {
	return t.Define(ScopeStatic, name, op)
}

// setParent links t to parent after declaration. Parents from another engine
// are ignored.
func (t *Type) setParent(parent *Type) {
	if parent == nil || parent.engine != t.engine {
		return
	}
	t.engine.cfgMu.Lock()
	t.parent = parent
	t.engine.cfgMu.Unlock()
}

// ReleaseID reports that the instance tracked under id is gone.
func (t *Type) ReleaseID(id ID) {
	t.engine.auditor.Release(id)
}

func (t *Type) set(scope Scope) *nameSet {
	if scope == ScopeStatic {
		return &t.static
	}
	return &t.instance
}

// effective must be called with cfgMu held.
func (t *Type) effective(scope Scope) *nameSet {
	for cur := t; cur != nil; cur = cur.parent {
		if s := cur.set(scope); !s.empty() {
			return s
		}
	}
	return nil
}

// shouldTrace must be called with cfgMu held.
func (t *Type) shouldTrace(scope Scope, name string) bool {
	if s := t.effective(scope); s != nil {
		return s.has(name)
	}
	return t.engine.config.TraceAll
}

// resolveSink must be called with cfgMu held.
func (t *Type) resolveSink() Sink {
	for cur := t; cur != nil; cur = cur.parent {
		if cur.sink != nil {
			return cur.sink
		}
	}
	return t.engine.sink
}
