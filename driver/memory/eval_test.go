package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorient"
)

func seedStore(t *testing.T) (*Store, gorient.Session) {
	t.Helper()
	store := NewStore(nil)
	session, err := store.Pool().Acquire(context.Background())
	require.NoError(t, err)

	rows := []map[string]any{
		{"name": "Ada", "age": 36, "city": "London", "active": true},
		{"name": "Grace", "age": 45, "city": "Arlington", "active": false},
		{"name": "Edsger", "age": 72, "city": "Austin", "active": false},
		{"name": "Barbara", "age": 58, "city": nil, "active": true},
	}
	for _, row := range rows {
		rec := session.NewRecord("Person")
		for k, v := range row {
			rec.Set(k, v)
		}
		require.NoError(t, session.Save(context.Background(), rec))
	}
	return store, session
}

func queryNames(t *testing.T, session gorient.Session, text string, params ...any) []string {
	t.Helper()
	recs, err := session.Query(context.Background(), text, params...)
	require.NoError(t, err)
	names := make([]string, 0, len(recs))
	for _, rec := range recs {
		v, _ := rec.Get("name")
		names = append(names, v.(string))
	}
	return names
}

func TestEvaluator_Predicates(t *testing.T) {
	_, session := seedStore(t)

	t.Run("equality", func(t *testing.T) {
		assert.Equal(t, []string{"Ada"},
			queryNames(t, session, "SELECT FROM Person WHERE name = ?", "Ada"))
	})

	t.Run("negated equality ignores nulls", func(t *testing.T) {
		names := queryNames(t, session, "SELECT FROM Person WHERE city <> ?", "London")
		assert.ElementsMatch(t, []string{"Grace", "Edsger"}, names)
	})

	t.Run("ordering operators widen numerics", func(t *testing.T) {
		names := queryNames(t, session, "SELECT FROM Person WHERE age >= ?", int64(58))
		assert.ElementsMatch(t, []string{"Edsger", "Barbara"}, names)
	})

	t.Run("between is inclusive", func(t *testing.T) {
		names := queryNames(t, session, "SELECT FROM Person WHERE age BETWEEN ? AND ?", 36, 58)
		assert.ElementsMatch(t, []string{"Ada", "Grace", "Barbara"}, names)
	})

	t.Run("like anchors the pattern", func(t *testing.T) {
		assert.Equal(t, []string{"Ada"},
			queryNames(t, session, "SELECT FROM Person WHERE city LIKE ?", "Lon%"))
		assert.Empty(t,
			queryNames(t, session, "SELECT FROM Person WHERE city LIKE ?", "ondo"))
		assert.Equal(t, []string{"Ada"},
			queryNames(t, session, "SELECT FROM Person WHERE city LIKE ?", "%ondo%"))
	})

	t.Run("not like", func(t *testing.T) {
		names := queryNames(t, session, "SELECT FROM Person WHERE city NOT LIKE ?", "%on%")
		assert.ElementsMatch(t, []string{"Edsger"}, names)
	})

	t.Run("null checks", func(t *testing.T) {
		assert.Equal(t, []string{"Barbara"},
			queryNames(t, session, "SELECT FROM Person WHERE city IS NULL"))
		names := queryNames(t, session, "SELECT FROM Person WHERE city IS NOT NULL")
		assert.Len(t, names, 3)
	})

	t.Run("boolean literals", func(t *testing.T) {
		names := queryNames(t, session, "SELECT FROM Person WHERE active = true")
		assert.ElementsMatch(t, []string{"Ada", "Barbara"}, names)
	})

	t.Run("in list", func(t *testing.T) {
		names := queryNames(t, session, "SELECT FROM Person WHERE name IN ?", []string{"Ada", "Grace"})
		assert.ElementsMatch(t, []string{"Ada", "Grace"}, names)
	})

	t.Run("regex match", func(t *testing.T) {
		names := queryNames(t, session, "SELECT FROM Person WHERE name MATCHES ?", "^[AB].*a$")
		assert.ElementsMatch(t, []string{"Ada", "Barbara"}, names)
	})

	t.Run("lower-cased comparison", func(t *testing.T) {
		assert.Equal(t, []string{"Ada"},
			queryNames(t, session, "SELECT FROM Person WHERE name.toLowerCase() = ?", "ada"))
	})

	t.Run("or of and groups", func(t *testing.T) {
		names := queryNames(t, session,
			"SELECT FROM Person WHERE (age > ? AND active = false) OR name = ?", 50, "Ada")
		assert.ElementsMatch(t, []string{"Ada", "Edsger"}, names)
	})
}

func TestEvaluator_Clauses(t *testing.T) {
	_, session := seedStore(t)

	t.Run("order by with direction", func(t *testing.T) {
		names := queryNames(t, session, "SELECT FROM Person ORDER BY age DESC")
		assert.Equal(t, []string{"Edsger", "Barbara", "Grace", "Ada"}, names)
	})

	t.Run("skip and limit", func(t *testing.T) {
		names := queryNames(t, session, "SELECT FROM Person ORDER BY age ASC SKIP 1 LIMIT 2")
		assert.Equal(t, []string{"Grace", "Barbara"}, names)
	})

	t.Run("count projection", func(t *testing.T) {
		recs, err := session.Query(context.Background(),
			"SELECT count(*) as count FROM Person WHERE active = true")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		v, ok := recs[0].Get("count")
		require.True(t, ok)
		assert.Equal(t, int64(2), v)
	})

	t.Run("count of unknown class is zero", func(t *testing.T) {
		recs, err := session.Query(context.Background(), "SELECT count(*) as count FROM Ghost")
		require.NoError(t, err)
		v, _ := recs[0].Get("count")
		assert.Equal(t, int64(0), v)
	})
}

func TestEvaluator_Commands(t *testing.T) {
	t.Run("delete vertex with filter", func(t *testing.T) {
		_, session := seedStore(t)

		n, err := session.Command(context.Background(), "DELETE VERTEX Person WHERE active = false")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		names := queryNames(t, session, "SELECT FROM Person")
		assert.ElementsMatch(t, []string{"Ada", "Barbara"}, names)
	})

	t.Run("ddl statements are accepted no-ops", func(t *testing.T) {
		_, session := seedStore(t)

		_, err := session.Command(context.Background(), "CREATE CLASS Person IF NOT EXISTS EXTENDS V")
		assert.NoError(t, err)
		_, err = session.Command(context.Background(), "CREATE PROPERTY Person.name IF NOT EXISTS STRING")
		assert.NoError(t, err)
	})

	t.Run("parameter count mismatches are rejected", func(t *testing.T) {
		_, session := seedStore(t)

		_, err := session.Query(context.Background(), "SELECT FROM Person WHERE name = ?")
		assert.Error(t, err)

		_, err = session.Query(context.Background(), "SELECT FROM Person", "stray")
		assert.Error(t, err)
	})
}

func TestSession_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("load returns nil for missing rid", func(t *testing.T) {
		store := NewStore(nil)
		session, err := store.Pool().Acquire(ctx)
		require.NoError(t, err)

		rec, err := session.Load(ctx, "#9:999")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("save assigns rid and bumps version", func(t *testing.T) {
		store := NewStore(nil)
		session, err := store.Pool().Acquire(ctx)
		require.NoError(t, err)

		rec := session.NewRecord("Person")
		rec.Set("name", "Ada")
		require.NoError(t, session.Save(ctx, rec))
		assert.True(t, rec.Identity().Valid())
		assert.Equal(t, 1, rec.Version())

		rec.Set("name", "Ada L.")
		require.NoError(t, session.Save(ctx, rec))
		assert.Equal(t, 2, rec.Version())
	})

	t.Run("loaded records are detached copies", func(t *testing.T) {
		store := NewStore(nil)
		session, err := store.Pool().Acquire(ctx)
		require.NoError(t, err)

		rec := session.NewRecord("Person")
		rec.Set("name", "Ada")
		require.NoError(t, session.Save(ctx, rec))

		loaded, err := session.Load(ctx, rec.Identity())
		require.NoError(t, err)
		loaded.Set("name", "mutated")

		fresh, err := session.Load(ctx, rec.Identity())
		require.NoError(t, err)
		v, _ := fresh.Get("name")
		assert.Equal(t, "Ada", v)
	})

	t.Run("rollback restores the snapshot", func(t *testing.T) {
		store := NewStore(nil)
		session, err := store.Pool().Acquire(ctx)
		require.NoError(t, err)

		require.NoError(t, session.Begin(ctx))
		rec := session.NewRecord("Person")
		rec.Set("name", "Ada")
		require.NoError(t, session.Save(ctx, rec))
		require.NoError(t, session.Rollback(ctx))

		recs, err := session.Query(ctx, "SELECT FROM Person")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("close with open transaction rolls back", func(t *testing.T) {
		store := NewStore(nil)
		session, err := store.Pool().Acquire(ctx)
		require.NoError(t, err)

		require.NoError(t, session.Begin(ctx))
		rec := session.NewRecord("Person")
		rec.Set("name", "Ada")
		require.NoError(t, session.Save(ctx, rec))
		require.NoError(t, session.Close(ctx))

		other, err := store.Pool().Acquire(ctx)
		require.NoError(t, err)
		recs, err := other.Query(ctx, "SELECT FROM Person")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("closed sessions reject operations", func(t *testing.T) {
		store := NewStore(nil)
		session, err := store.Pool().Acquire(ctx)
		require.NoError(t, err)
		require.NoError(t, session.Close(ctx))

		_, err = session.Query(ctx, "SELECT FROM Person")
		assert.Error(t, err)
	})
}
