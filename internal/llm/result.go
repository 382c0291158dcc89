package llm

import "slices"

// Result carries a value, errors, or both. Results built with Ok, Err and
// OkAndErr always hold at least one of them.
type Result[T any] struct {
	value    T
	hasValue bool
	errors   []*ClientError
}

// Ok is a plain success.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, hasValue: true}
}

// Err is a failure. An empty list is replaced by one unknown error.
func Err[T any](errs ...*ClientError) Result[T] {
	return Result[T]{errors: ensureErrors(errs)}
}

// OkAndErr is a partial success, e.g. text streamed before the remote failed.
// An empty list is replaced by one unknown error.
func OkAndErr[T any](v T, errs ...*ClientError) Result[T] {
	return Result[T]{value: v, hasValue: true, errors: ensureErrors(errs)}
}

// Unchecked rebuilds a result from parts that are already known to be valid.
// Passing neither a value nor errors produces a result that Unwrap rejects.
func Unchecked[T any](value *T, errs []*ClientError) Result[T] {
	r := Result[T]{errors: errs}
	if value != nil {
		r.value, r.hasValue = *value, true
	}
	return r
}

func ensureErrors(errs []*ClientError) []*ClientError {
	if len(errs) == 0 {
		return []*ClientError{NewError(ErrUnknown, defaultErrorMessage)}
	}
	return slices.Clone(errs)
}

// Value returns the value and whether one is present.
func (r Result[T]) Value() (T, bool) { return r.value, r.hasValue }

// Errors returns the reported errors. The slice must not be modified.
func (r Result[T]) Errors() []*ClientError { return r.errors }

func (r Result[T]) HasValue() bool { return r.hasValue }
func (r Result[T]) HasErrors() bool { return len(r.errors) > 0 }

// ValueOr returns the value or fallback when there is none.
func (r Result[T]) ValueOr(fallback T) T {
	if r.hasValue {
		return r.value
	}
	return fallback
}

// Unwrap collapses the result to the usual Go shape. Any error wins over a
// partial value. It panics on a result with neither, which only Unchecked
// can build.
func (r Result[T]) Unwrap() (T, error) {
	if len(r.errors) > 0 {
		var zero T
		return zero, Errors(slices.Clone(r.errors))
	}
	if !r.hasValue {
		panic("llm: result holds neither a value nor errors")
	}
	return r.value, nil
}

// MapResult transforms the value of r, keeping a copy of its errors.
func MapResult[T, U any](r Result[T], fn func(T) U) Result[U] {
	out := Result[U]{errors: slices.Clone(r.errors)}
	if r.hasValue {
		out.value, out.hasValue = fn(r.value), true
	}
	return out
}
