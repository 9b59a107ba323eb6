package defunc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntercept_SingleCall(t *testing.T) {
	e, buf := newTestEngine(t, Config{})
	random := e.Declare("Random").WatchStatic("random")
	op := random.DefineStatic("random", constOp(5))

	out, err := op(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	assert.Equal(t, []string{
		"enter random: []",
		"exit random: 5 (object count has changed by +0)",
	}, buf.Lines())
}

func TestIntercept_NestedCalls(t *testing.T) {
	e, buf := newTestEngine(t, Config{})
	calc := e.Declare("Calc").WatchStatic("outer", "inner")

	inner := calc.DefineStatic("inner", func(_ context.Context, _ any, args ...any) (any, error) {
		return args[0].(int) * 2, nil
	})
	outer := calc.DefineStatic("outer", func(ctx context.Context, _ any, args ...any) (any, error) {
		return inner(ctx, nil, args[0].(int)+1)
	})

	out, err := outer(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, out)

	assert.Equal(t, []string{
		"enter outer: [1]",
		"  enter inner: [2]",
		"  exit inner: 4 (object count has changed by +0)",
		"exit outer: 4 (object count has changed by +0)",
	}, buf.Lines())
	assert.Equal(t, 0, e.Depth())
}

func TestIntercept_CustomIndentStep(t *testing.T) {
	e, buf := newTestEngine(t, Config{IndentStep: 4})
	typ := e.Declare("T").WatchStatic("a", "b")
	b := typ.DefineStatic("b", constOp(nil))
	a := typ.DefineStatic("a", func(ctx context.Context, _ any, _ ...any) (any, error) {
		return b(ctx, nil)
	})

	_, err := a(context.Background(), nil)
	require.NoError(t, err)

	lines := buf.Lines()
	require.Len(t, lines, 4)
	assert.Equal(t, "    enter b: []", lines[1])
	assert.Equal(t, "    exit b: nil (object count has changed by +0)", lines[2])
}

func TestIntercept_UnlistedOperation(t *testing.T) {
	e, buf := newTestEngine(t, Config{TraceAll: true})
	dice := e.Declare("Dice").WatchMethods("roll")

	op := dice.DefineMethod("peek", constOp(3))
	out, err := op(context.Background(), &struct{}{})
	require.NoError(t, err)
	assert.Equal(t, 3, out)

	assert.Empty(t, buf.Lines())
	assert.False(t, e.Intercepted(dice, ScopeInstance, "peek"))
}

func TestIntercept_EmptyWatchSet(t *testing.T) {
	tests := []struct {
		name      string
		traceAll  bool
		wantLines int
	}{
		{name: "trace all disabled", traceAll: false, wantLines: 0},
		{name: "trace all enabled", traceAll: true, wantLines: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, buf := newTestEngine(t, Config{TraceAll: tt.traceAll})
			typ := e.Declare("Plain")

			op := typ.DefineMethod("anything", constOp("x"))
			_, err := op(context.Background(), nil)
			require.NoError(t, err)

			assert.Len(t, buf.Lines(), tt.wantLines)
			assert.Equal(t, tt.traceAll, e.Intercepted(typ, ScopeInstance, "anything"))
		})
	}
}

func TestIntercept_ScopesAreIndependent(t *testing.T) {
	e, buf := newTestEngine(t, Config{})
	typ := e.Declare("Random").WatchStatic("random")

	op := typ.DefineMethod("random", constOp(1))
	_, err := op(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, buf.Lines())
}

func TestIntercept_DepthRestoredAfterError(t *testing.T) {
	e, buf := newTestEngine(t, Config{})
	typ := e.Declare("Failing").WatchStatic("fail")

	boom := errors.New("boom")
	op := typ.DefineStatic("fail", func(context.Context, any, ...any) (any, error) {
		return nil, boom
	})

	_, err := op(context.Background(), nil, "x")
	assert.True(t, err == boom, "error must be returned unchanged")
	assert.Equal(t, 0, e.Depth())
	assert.Equal(t, []string{
		`enter fail: ["x"]`,
		`exit fail: error("boom") (object count has changed by +0)`,
	}, buf.Lines())
}

func TestIntercept_DepthRestoredAfterPanic(t *testing.T) {
	e, buf := newTestEngine(t, Config{})
	typ := e.Declare("Panicky").WatchStatic("explode")

	op := typ.DefineStatic("explode", func(context.Context, any, ...any) (any, error) {
		panic("kaboom")
	})

	assert.PanicsWithValue(t, "kaboom", func() {
		_, _ = op(context.Background(), nil)
	})
	assert.Equal(t, 0, e.Depth())
	assert.Equal(t, []string{"enter explode: []"}, buf.Lines())

	// The engine keeps working after a panic.
	ok := typ.WatchStatic("ok").DefineStatic("ok", constOp(true))
	_, err := ok(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "enter ok: []", buf.Lines()[1])
}

func TestIntercept_CountDelta(t *testing.T) {
	e, buf := newTestEngine(t, Config{})
	cup := e.Declare("Cup").WatchMethods("fill", "drain")
	dice := e.Declare("Dice")

	var ids []ID
	fill := cup.DefineMethod("fill", func(_ context.Context, _ any, args ...any) (any, error) {
		for i := 0; i < args[0].(int); i++ {
			ids = append(ids, dice.TrackNew())
		}
		return len(ids), nil
	})
	drain := cup.DefineMethod("drain", func(context.Context, any, ...any) (any, error) {
		for _, id := range ids {
			dice.ReleaseID(id)
		}
		ids = nil
		return nil, nil
	})

	_, err := fill(context.Background(), nil, 3)
	require.NoError(t, err)
	_, err = drain(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"enter fill: [3]",
		"exit fill: 3 (object count has changed by +3)",
		"enter drain: []",
		"exit drain: nil (object count has changed by -3)",
	}, buf.Lines())
}

func TestIntercept_Idempotent(t *testing.T) {
	e, buf := newTestEngine(t, Config{})
	typ := e.Declare("Random").WatchStatic("random")

	first := typ.DefineStatic("random", constOp(5))
	second := typ.DefineStatic("random", constOp(6))
	assert.True(t, e.Intercepted(typ, ScopeStatic, "random"))

	_, err := second(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, buf.Lines(), "second definition must not be wrapped")

	// Re-intercepting the wrapper hands it back without a second layer.
	wrapped := e.Intercept(typ, ScopeStatic, "random", first)
	_, err = wrapped(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"enter random: []",
		"exit random: 5 (object count has changed by +0)",
	}, buf.Lines())

	_, err = first(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, buf.Lines(), 4)
	assert.Equal(t, 0, e.Depth())
}

func TestIntercept_ReservedNames(t *testing.T) {
	e, buf := newTestEngine(t, Config{TraceAll: true})
	typ := e.Declare("Binder")

	for _, name := range []string{"bind", "Rebind", "BINDING_inspect"} {
		op := typ.DefineMethod(name, constOp(nil))
		_, err := op(context.Background(), nil)
		require.NoError(t, err)
		assert.False(t, e.Intercepted(typ, ScopeInstance, name), name)
	}
	assert.Empty(t, buf.Lines())
	assert.True(t, e.IsReserved("unbind"))
	assert.False(t, e.IsReserved("roll"))
}

func TestIntercept_CustomReservedPattern(t *testing.T) {
	e, buf := newTestEngine(t, Config{TraceAll: true, ReservedPattern: `^internal_`})
	typ := e.Declare("T")

	skipped := typ.DefineStatic("internal_state", constOp(nil))
	traced := typ.DefineStatic("bind", constOp(nil))

	_, _ = skipped(context.Background(), nil)
	_, _ = traced(context.Background(), nil)

	assert.Equal(t, []string{
		"enter bind: []",
		"exit bind: nil (object count has changed by +0)",
	}, buf.Lines())
}

func TestIntercept_ArgumentsForwarded(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	typ := e.Declare("Forwarder").WatchMethods("each")

	var gotRecv any
	var gotArgs []any
	op := typ.DefineMethod("each", func(_ context.Context, recv any, args ...any) (any, error) {
		gotRecv = recv
		gotArgs = args
		cb := args[len(args)-1].(func(int) int)
		return cb(args[0].(int)), nil
	})

	recv := &struct{ n int }{n: 1}
	out, err := op(context.Background(), recv, 20, "mid", func(n int) int { return n + 1 })
	require.NoError(t, err)

	assert.Equal(t, 21, out)
	assert.Same(t, recv, gotRecv)
	require.Len(t, gotArgs, 3)
	assert.Equal(t, 20, gotArgs[0])
	assert.Equal(t, "mid", gotArgs[1])
}

func TestIntercept_NilContext(t *testing.T) {
	e, buf := newTestEngine(t, Config{})
	typ := e.Declare("T").WatchStatic("op")

	var got context.Context
	op := typ.DefineStatic("op", func(ctx context.Context, _ any, _ ...any) (any, error) {
		got = ctx
		return nil, nil
	})

	//nolint:staticcheck // nil context is tolerated
	_, err := op(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Len(t, buf.Lines(), 2)
}

func TestIntercept_QualifiedNames(t *testing.T) {
	e, buf := newTestEngine(t, Config{QualifiedNames: true})
	random := e.Declare("Random").WatchStatic("random").WatchMethods("random")

	static := random.DefineStatic("random", constOp(5))
	instance := random.DefineMethod("random", constOp(6))

	_, _ = static(context.Background(), nil)
	_, _ = instance(context.Background(), nil)

	assert.Equal(t, []string{
		"enter Random.random: []",
		"exit Random.random: 5 (object count has changed by +0)",
		"enter Random#random: []",
		"exit Random#random: 6 (object count has changed by +0)",
	}, buf.Lines())
}

func TestIntercept_Inheritance(t *testing.T) {
	e, buf := newTestEngine(t, Config{})
	base := e.Declare("Dice").WatchMethods("roll")
	loaded := e.Declare("LoadedDice", WithParent(base))
	custom := e.Declare("CustomDice", WithParent(base)).WatchMethods("cheat")

	assert.Equal(t, []string{"roll"}, loaded.Watched(ScopeInstance))
	assert.True(t, loaded.ShouldTrace(ScopeInstance, "roll"))
	assert.False(t, custom.ShouldTrace(ScopeInstance, "roll"))
	assert.True(t, custom.ShouldTrace(ScopeInstance, "cheat"))

	roll := loaded.DefineMethod("roll", constOp(6))
	_, err := roll(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, buf.Lines(), 2)
}

func TestIntercept_PerTypeSink(t *testing.T) {
	e, defaultBuf := newTestEngine(t, Config{})
	base := e.Declare("Base").WatchStatic("op")
	child := e.Declare("Child", WithParent(base))
	other := e.Declare("Other").WatchStatic("op")

	own := &lineBuffer{}
	base.SetOutStream(own)

	_, _ = child.DefineStatic("op", constOp(1))(context.Background(), nil)
	_, _ = other.DefineStatic("op", constOp(2))(context.Background(), nil)

	assert.Len(t, own.Lines(), 2, "child inherits the base sink")
	assert.Len(t, defaultBuf.Lines(), 2)
	assert.Same(t, own, child.Sink())

	base.SetOutStream(nil)
	assert.Same(t, defaultBuf, child.Sink())
}

func TestIntercept_SinkErrorDoesNotFailCall(t *testing.T) {
	failing := SinkFunc(func(string) error { return errors.New("disk full") })
	e, err := New(Config{}, WithSink(failing))
	require.NoError(t, err)

	op := e.Declare("T").WatchStatic("op").DefineStatic("op", constOp(7))
	out, err := op(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}

func TestIntercept_ConcurrentSharedDepth(t *testing.T) {
	e, buf := newTestEngine(t, Config{})
	typ := e.Declare("T").WatchStatic("work")
	op := typ.DefineStatic("work", func(context.Context, any, ...any) (any, error) {
		time.Sleep(time.Millisecond)
		return nil, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = op(context.Background(), nil)
		}()
	}
	wg.Wait()

	assert.Len(t, buf.Lines(), 100)
	assert.Equal(t, 0, e.Depth())
}

func TestIntercept_ContextDepthMode(t *testing.T) {
	e, buf := newTestEngine(t, Config{DepthMode: DepthModeContext})
	typ := e.Declare("T").WatchStatic("outer", "inner")

	inner := typ.DefineStatic("inner", func(ctx context.Context, _ any, _ ...any) (any, error) {
		return DepthFromContext(ctx), nil
	})
	outer := typ.DefineStatic("outer", func(ctx context.Context, _ any, _ ...any) (any, error) {
		time.Sleep(time.Millisecond)
		return inner(ctx, nil)
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := outer(context.Background(), nil)
			assert.NoError(t, err)
			assert.Equal(t, 4, out)
		}()
	}
	wg.Wait()

	for _, line := range buf.Lines() {
		switch {
		case strings.Contains(line, "outer"):
			assert.False(t, strings.HasPrefix(line, " "), line)
		case strings.Contains(line, "inner"):
			assert.True(t, strings.HasPrefix(line, "  ") && !strings.HasPrefix(line, "   "), line)
		}
	}
	assert.Equal(t, 0, e.Depth())
}

type callRecord struct {
	typeName, operation, scope, status string
	depth                              int
}

type fakeRecorder struct {
	mu       sync.Mutex
	calls    []callRecord
	tracked  []string
	released []string
	stale    []string
}

func (r *fakeRecorder) RecordCall(_ context.Context, typeName, operation, scope string, depth int, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, callRecord{typeName, operation, scope, status, depth})
}

func (r *fakeRecorder) RecordInstanceTracked(_ context.Context, typeName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked = append(r.tracked, typeName)
}

func (r *fakeRecorder) RecordInstanceReleased(_ context.Context, typeName string, stale bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, typeName)
	if stale {
		r.stale = append(r.stale, typeName)
	}
}

func TestIntercept_Recorder(t *testing.T) {
	rec := &fakeRecorder{}
	clock := newFakeClock()
	e, _ := newTestEngine(t, Config{}, WithRecorder(rec), WithClock(clock.Now))
	typ := e.Declare("T").WatchStatic("ok", "fail", "explode")

	_, _ = typ.DefineStatic("ok", constOp(1))(context.Background(), nil)
	_, _ = typ.DefineStatic("fail", func(context.Context, any, ...any) (any, error) {
		return nil, fmt.Errorf("nope")
	})(context.Background(), nil)
	explode := typ.DefineStatic("explode", func(context.Context, any, ...any) (any, error) {
		panic("x")
	})
	assert.Panics(t, func() { _, _ = explode(context.Background(), nil) })

	id := typ.TrackNew()
	clock.Advance(3 * time.Minute)
	typ.ReleaseID(id)

	assert.Equal(t, []callRecord{
		{"T", "ok", "static", StatusSuccess, 0},
		{"T", "fail", "static", StatusError, 0},
		{"T", "explode", "static", StatusPanic, 0},
	}, rec.calls)
	assert.Equal(t, []string{"T"}, rec.tracked)
	assert.Equal(t, []string{"T"}, rec.released)
	assert.Equal(t, []string{"T"}, rec.stale)
}

func TestEngine_Declare(t *testing.T) {
	e, _ := newTestEngine(t, Config{})

	first := e.Declare("Dice")
	again := e.Declare("Dice", MarkInternal())
	assert.Same(t, first, again)
	assert.False(t, again.Internal(), "options only apply at creation")

	got, ok := e.Lookup("Dice")
	assert.True(t, ok)
	assert.Same(t, first, got)

	_, ok = e.Lookup("Missing")
	assert.False(t, ok)

	e.Declare("Cup")
	assert.Equal(t, []string{"Cup", "Dice"}, e.Types())
	assert.Same(t, e, first.Engine())
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{DepthMode: "thread"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid engine config")
}

func TestWatch_Dedup(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	typ := e.Declare("T").WatchMethods("a", "b", "a", "").WatchMethods("b", "c")

	assert.Equal(t, []string{"a", "b", "c"}, typ.Watched(ScopeInstance))
	assert.Nil(t, typ.Watched(ScopeStatic))
}
