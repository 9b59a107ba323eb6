package defunc

import "context"

// Func0 defines a static operation with no arguments and returns a typed caller.
func Func0[R any](t *Type, name string, fn func(ctx context.Context) (R, error)) func(ctx context.Context) (R, error) {
	op := t.DefineStatic(name, func(ctx context.Context, _ any, _ ...any) (any, error) {
		return fn(ctx)
	})
	return func(ctx context.Context) (R, error) {
		out, err := op(ctx, nil)
		return as[R](out), err
	}
}

// Func1 defines a static operation with one argument.
func Func1[A, R any](t *Type, name string, fn func(ctx context.Context, a A) (R, error)) func(ctx context.Context, a A) (R, error) {
	op := t.DefineStatic(name, func(ctx context.Context, _ any, args ...any) (any, error) {
		return fn(ctx, argAt[A](args, 0))
	})
	return func(ctx context.Context, a A) (R, error) {
		out, err := op(ctx, nil, a)
		return as[R](out), err
	}
}

// Func2 defines a static operation with two arguments.
func Func2[A, B, R any](t *Type, name string, fn func(ctx context.Context, a A, b B) (R, error)) func(ctx context.Context, a A, b B) (R, error) {
	op := t.DefineStatic(name, func(ctx context.Context, _ any, args ...any) (any, error) {
		return fn(ctx, argAt[A](args, 0), argAt[B](args, 1))
	})
	return func(ctx context.Context, a A, b B) (R, error) {
		out, err := op(ctx, nil, a, b)
		return as[R](out), err
	}
}

// Method0 defines an instance operation with no arguments on *T.
func Method0[T, R any](t *Type, name string, fn func(ctx context.Context, recv *T) (R, error)) func(ctx context.Context, recv *T) (R, error) {
	op := t.DefineMethod(name, func(ctx context.Context, recv any, _ ...any) (any, error) {
		return fn(ctx, as[*T](recv))
	})
	return func(ctx context.Context, recv *T) (R, error) {
		out, err := op(ctx, recv)
		return as[R](out), err
	}
}

// Method1 defines an instance operation with one argument on *T.
func Method1[T, A, R any](t *Type, name string, fn func(ctx context.Context, recv *T, a A) (R, error)) func(ctx context.Context, recv *T, a A) (R, error) {
	op := t.DefineMethod(name, func(ctx context.Context, recv any, args ...any) (any, error) {
		return fn(ctx, as[*T](recv), argAt[A](args, 0))
	})
	return func(ctx context.Context, recv *T, a A) (R, error) {
		out, err := op(ctx, recv, a)
		return as[R](out), err
	}
}

// Method2 defines an instance operation with two arguments on *T.
func Method2[T, A, B, R any](t *Type, name string, fn func(ctx context.Context, recv *T, a A, b B) (R, error)) func(ctx context.Context, recv *T, a A, b B) (R, error) {
	op := t.DefineMethod(name, func(ctx context.Context, recv any, args ...any) (any, error) {
		return fn(ctx, as[*T](recv), argAt[A](args, 0), argAt[B](args, 1))
	})
	return func(ctx context.Context, recv *T, a A, b B) (R, error) {
		out, err := op(ctx, recv, a, b)
		return as[R](out), err
	}
}

func as[V any](v any) V {
	if out, ok := v.(V); ok {
		return out
	}
	var zero V
	return zero
}

func argAt[V any](args []any, i int) V {
	if i >= len(args) {
		var zero V
		return zero
	}
	return as[V](args[i])
}
