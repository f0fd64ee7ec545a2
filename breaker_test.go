package gorient_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"gorient"
	"gorient/driver/memory"
	"gorient/mapping"
)

type failingPool struct{ err error }

func (p failingPool) Acquire(ctx context.Context) (gorient.Session, error) {
	return nil, p.err
}

func TestBreakerPool(t *testing.T) {
	t.Run("passes healthy acquisitions through", func(t *testing.T) {
		inner := memory.NewStore(nil).Pool()
		pool := gorient.NewBreakerPool(inner, gorient.DefaultBreakerConfig("test"), nil)

		session, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.NoError(t, session.Close(context.Background()))
	})

	t.Run("opens after repeated failures", func(t *testing.T) {
		cause := errors.New("connection refused")
		cfg := gorient.BreakerConfig{
			Name:             "test",
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			FailureThreshold: 0.5,
			MinRequests:      2,
		}
		pool := gorient.NewBreakerPool(failingPool{err: cause}, cfg, nil)

		_, err := pool.Acquire(context.Background())
		assert.ErrorIs(t, err, cause)
		_, err = pool.Acquire(context.Background())
		assert.ErrorIs(t, err, cause)

		// The breaker is open now; the inner pool is no longer consulted.
		_, err = pool.Acquire(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, cause)
	})
}

func TestTracedPool_DelegatesToInner(t *testing.T) {
	inner := memory.NewStore(nil).Pool()
	pool := gorient.NewTracedPool(inner, otel.Tracer("gorient-test"))
	tmpl := gorient.NewTemplate(pool, mapping.NewRegistry(nil), nil)
	repo := gorient.NewRepository[TestPerson](tmpl)
	ctx := context.Background()

	p := &TestPerson{FirstName: "John"}
	require.NoError(t, repo.Save(ctx, p))

	loaded, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "John", loaded.FirstName)

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
