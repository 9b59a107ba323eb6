package defunc

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/teemow/defunc/internal/logging"
)

// Op is an interceptable operation. Static operations receive a nil recv.
type Op func(ctx context.Context, recv any, args ...any) (any, error)

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the default sink for types without their own (default: Stdout()).
func WithSink(sink Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithLogger sets the diagnostics logger (default: discard).
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder adds a measurement recorder. It can be given more than once.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorders = append(e.recorders, r)
		}
	}
}

// WithClock replaces time.Now for call durations and instance ages.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

type opKey struct {
	typ   *Type
	scope Scope
	name  string
}

// Engine owns the watch registry, the intercepted-operation table, the depth
// tracker and the lifetime auditor.
//
// Lock order is mu, then cfgMu, then the auditor's lock.
type Engine struct {
	config    Config
	reserved  *regexp.Regexp
	sink      Sink
	logger    logging.Logger
	recorders recorders
	clock     func() time.Time

	cfgMu       sync.RWMutex
	types       map[string]*Type
	intercepted map[opKey]struct{}

	// mu serializes depth changes and enter/exit emission.
	mu    sync.Mutex
	depth depthTracker

	auditor *Auditor
}

// New creates an engine from config.
func New(config Config, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	config = config.withDefaults()

	reserved, err := regexp.Compile(config.ReservedPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid reserved pattern: %w", err)
	}

	e := &Engine{
		config:      config,
		reserved:    reserved,
		sink:        Stdout(),
		logger:      logging.NopLogger(),
		clock:       time.Now,
		types:       make(map[string]*Type),
		intercepted: make(map[opKey]struct{}),
		depth:       depthTracker{mode: config.DepthMode, step: config.IndentStep},
	}
	for _, opt := range opts {
		opt(e)
	}

	e.auditor = newAuditor(config.StaleThreshold, e.clock)
	e.auditor.onTrack = e.instanceTracked
	e.auditor.onRelease = e.instanceReleased

	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Auditor returns the engine's lifetime auditor.
func (e *Engine) Auditor() *Auditor {
	return e.auditor
}

// Depth returns the current shared depth. It is always 0 in context mode.
func (e *Engine) Depth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.depth.current
}

// Declare returns the type named name, creating it with opts if it does not
// exist. Options are ignored for existing types.
func (e *Engine) Declare(name string, opts ...TypeOption) *Type {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()

	if t, ok := e.types[name]; ok {
		return t
	}

	t := &Type{engine: e, name: name}
	for _, opt := range opts {
		opt(t)
	}
	if t.parent != nil && t.parent.engine != e {
		t.parent = nil
	}
	e.types[name] = t

	e.logger.Debug("type declared", logging.Type(name), "internal", t.internal)
	return t
}

// Lookup returns the type named name.
func (e *Engine) Lookup(name string) (*Type, bool) {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	t, ok := e.types[name]
	return t, ok
}

// Types returns the declared type names in sorted order.
func (e *Engine) Types() []string {
	e.cfgMu.RLock()
	names := make([]string, 0, len(e.types))
	for name := range e.types {
		names = append(names, name)
	}
	e.cfgMu.RUnlock()

	slices.Sort(names)
	return names
}

// IsReserved reports whether name is owned by the instrumentation and never traced.
func (e *Engine) IsReserved(name string) bool {
	return e.reserved.MatchString(name)
}

// Intercepted reports whether name has been wrapped for (t, scope).
func (e *Engine) Intercepted(t *Type, scope Scope, name string) bool {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	_, ok := e.intercepted[opKey{typ: t, scope: scope, name: name}]
	return ok
}

// Intercept returns a tracing wrapper around op, or op itself when the
// operation is not watched, is reserved, or was already intercepted for
// (t, scope).
func (e *Engine) Intercept(t *Type, scope Scope, name string, op Op) Op {
	if op == nil || t == nil {
		return op
	}

	attrs := []any{logging.Type(t.name), logging.Operation(name), logging.Scope(scope.String())}

	if e.IsReserved(name) {
		e.logger.Debug("operation reserved, not intercepted", attrs...)
		return op
	}

	e.cfgMu.Lock()
	if !t.shouldTrace(scope, name) {
		e.cfgMu.Unlock()
		e.logger.Debug("operation not watched", attrs...)
		return op
	}
	key := opKey{typ: t, scope: scope, name: name}
	if _, ok := e.intercepted[key]; ok {
		e.cfgMu.Unlock()
		e.logger.Debug("operation already intercepted", attrs...)
		return op
	}
	e.intercepted[key] = struct{}{}
	e.cfgMu.Unlock()

	e.logger.Debug("operation intercepted", attrs...)
	return e.wrap(t, scope, name, op)
}

func (e *Engine) wrap(t *Type, scope Scope, name string, original Op) Op {
	return func(ctx context.Context, recv any, args ...any) (result any, err error) {
		if ctx == nil {
			ctx = context.Background()
		}
		start := e.clock()

		e.mu.Lock()
		depth, inner := e.depth.enter(ctx)
		before := e.auditor.Count()
		e.emit(t, TraceEvent{
			Depth:     depth,
			Phase:     PhaseEnter,
			Type:      t.name,
			Scope:     scope,
			Operation: name,
			Args:      args,
		})
		e.mu.Unlock()

		completed := false
		defer func() {
			e.mu.Lock()
			e.depth.exit()
			if completed {
				e.emit(t, TraceEvent{
					Depth:      depth,
					Phase:      PhaseExit,
					Type:       t.name,
					Scope:      scope,
					Operation:  name,
					Result:     result,
					Err:        err,
					CountDelta: e.auditor.Count() - before,
				})
			}
			e.mu.Unlock()

			status := StatusSuccess
			switch {
			case !completed:
				status = StatusPanic
			case err != nil:
				status = StatusError
			}
			e.recorders.RecordCall(ctx, t.name, name, scope.String(), depth, status, e.clock().Sub(start))
		}()

		result, err = original(inner, recv, args...)
		completed = true
		return result, err
	}
}

// emit writes ev to the type's sink. Sink failures are logged, never returned.
func (e *Engine) emit(t *Type, ev TraceEvent) {
	sink := t.Sink()
	if sink == nil {
		return
	}
	if err := sink.WriteLine(ev.Line(e.config.QualifiedNames)); err != nil {
		e.logger.Warn("failed to write trace line",
			logging.Type(ev.Type), logging.Operation(ev.Operation), logging.Err(err))
	}
}

func (e *Engine) instanceTracked(t *Type) {
	e.recorders.RecordInstanceTracked(context.Background(), t.name)
}

func (e *Engine) instanceReleased(rec record, age time.Duration, stale bool) {
	e.recorders.RecordInstanceReleased(context.Background(), rec.typ.name, stale)
	if !stale {
		return
	}

	e.logger.Debug("stale instance released",
		logging.Type(rec.typ.name), logging.InstanceID(uint64(rec.id)), "age", age)

	sink := rec.typ.Sink()
	if sink == nil {
		return
	}
	if err := sink.WriteLine(stalenessLine(rec.typ.name, rec.id, age)); err != nil {
		e.logger.Warn("failed to write staleness line", logging.Type(rec.typ.name), logging.Err(err))
	}
}
