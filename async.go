package gorient

import (
	"context"

	"gorient/query"
)

// Result carries one asynchronous outcome.
type Result[V any] struct {
	Value V
	Err   error
}

// AsyncRepository runs repository operations on a goroutine and hands back
// result channels. Every channel is buffered and delivers exactly one
// Result; cancellation of the context ends the underlying call the usual
// way and the Result carries its error.
type AsyncRepository[T any] struct {
	repo *Repository[T]
}

// NewAsyncRepository wraps a repository with the asynchronous surface.
func NewAsyncRepository[T any](repo *Repository[T]) *AsyncRepository[T] {
	return &AsyncRepository[T]{repo: repo}
}

func async[V any](fn func() (V, error)) <-chan Result[V] {
	ch := make(chan Result[V], 1)
	go func() {
		v, err := fn()
		ch <- Result[V]{Value: v, Err: err}
		close(ch)
	}()
	return ch
}

// Save persists the entity asynchronously.
func (a *AsyncRepository[T]) Save(ctx context.Context, entity *T) <-chan Result[*T] {
	return async(func() (*T, error) {
		if err := a.repo.Save(ctx, entity); err != nil {
			return nil, err
		}
		return entity, nil
	})
}

// FindByID looks an entity up asynchronously.
func (a *AsyncRepository[T]) FindByID(ctx context.Context, id any) <-chan Result[*T] {
	return async(func() (*T, error) { return a.repo.FindByID(ctx, id) })
}

// FindAll loads every entity asynchronously.
func (a *AsyncRepository[T]) FindAll(ctx context.Context) <-chan Result[[]*T] {
	return async(func() ([]*T, error) { return a.repo.FindAll(ctx) })
}

// FindPage loads one page asynchronously.
func (a *AsyncRepository[T]) FindPage(ctx context.Context, pageable query.Pageable) <-chan Result[query.Page[*T]] {
	return async(func() (query.Page[*T], error) { return a.repo.FindPage(ctx, pageable) })
}

// Count counts asynchronously.
func (a *AsyncRepository[T]) Count(ctx context.Context) <-chan Result[int64] {
	return async(func() (int64, error) { return a.repo.Count(ctx) })
}

// DeleteByID removes a record asynchronously.
func (a *AsyncRepository[T]) DeleteByID(ctx context.Context, id any) <-chan Result[struct{}] {
	return async(func() (struct{}, error) { return struct{}{}, a.repo.DeleteByID(ctx, id) })
}
