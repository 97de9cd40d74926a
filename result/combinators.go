package result

// Map applies fn to the value of a successful result.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if !r.ok {
		return Fail[U](r.Failure())
	}
	return Ok(fn(r.value))
}

// Bind chains an operation that itself returns a Result.
func Bind[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if !r.ok {
		return Fail[U](r.Failure())
	}
	return fn(r.value)
}

// Match folds a result into a single value.
func Match[T, U any](r Result[T], onOk func(T) U, onFail func(Failure) U) U {
	if r.ok {
		return onOk(r.value)
	}
	return onFail(r.Failure())
}

// OrElse returns the value or fallback when r failed.
func OrElse[T any](r Result[T], fallback T) T {
	if r.ok {
		return r.value
	}
	return fallback
}
