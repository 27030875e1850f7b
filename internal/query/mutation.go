package query

import "context"

// Mutation is a write. It is never cached, deduplicated or retried; callers
// invalidate the affected keys themselves.
type Mutation[A, R any] struct {
	Fn    func(ctx context.Context, arg A) (R, error)
	Guard func() error
}

func (m Mutation[A, R]) Do(ctx context.Context, arg A) (R, error) {
	if m.Guard != nil {
		if err := m.Guard(); err != nil {
			var zero R
			return zero, err
		}
	}
	return m.Fn(ctx, arg)
}
