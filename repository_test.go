package gorient_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorient"
	"gorient/driver/memory"
	"gorient/mapping"
	"gorient/query"
)

type TestPerson struct {
	ID         string `gorient:",id"`
	Version    int    `gorient:",version"`
	FirstName  string
	LastName   string
	Age        int
	Active     bool
	ModifiedAt time.Time
}

func (p *TestPerson) MarkModified(at time.Time) { p.ModifiedAt = at }

func newFixture(t *testing.T) (*gorient.Repository[TestPerson], gorient.Pool) {
	t.Helper()
	pool := memory.NewStore(nil).Pool()
	tmpl := gorient.NewTemplate(pool, mapping.NewRegistry(nil), nil)
	return gorient.NewRepository[TestPerson](tmpl), pool
}

func seedPeople(t *testing.T, repo *gorient.Repository[TestPerson], n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		p := &TestPerson{
			FirstName: fmt.Sprintf("First%02d", i),
			LastName:  fmt.Sprintf("Last%02d", i),
			Age:       20 + i,
			Active:    i%2 == 0,
		}
		require.NoError(t, repo.Save(ctx, p))
	}
}

func TestRepository_SaveAssignsIdentityAndVersion(t *testing.T) {
	repo, _ := newFixture(t)
	ctx := context.Background()

	p := &TestPerson{FirstName: "John", LastName: "Smith", Age: 30}
	require.NoError(t, repo.Save(ctx, p))

	assert.NotEmpty(t, p.ID)
	_, err := gorient.ParseRID(p.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, p.Version)
	assert.False(t, p.ModifiedAt.IsZero())
}

func TestRepository_SaveEqualContentYieldsDistinctIdentities(t *testing.T) {
	repo, _ := newFixture(t)
	ctx := context.Background()

	first := &TestPerson{FirstName: "John", LastName: "Smith", Age: 30}
	second := &TestPerson{FirstName: "John", LastName: "Smith", Age: 30}
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRepository_UpdateIsIdempotentOnCount(t *testing.T) {
	repo, _ := newFixture(t)
	ctx := context.Background()

	p := &TestPerson{FirstName: "John", LastName: "Smith", Age: 30}
	require.NoError(t, repo.Save(ctx, p))
	id := p.ID

	p.Age = 31
	require.NoError(t, repo.Save(ctx, p))

	assert.Equal(t, id, p.ID)
	assert.Equal(t, 2, p.Version)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	loaded, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 31, loaded.Age)
}

func TestRepository_FindByID(t *testing.T) {
	repo, _ := newFixture(t)
	ctx := context.Background()

	p := &TestPerson{FirstName: "John", LastName: "Smith"}
	require.NoError(t, repo.Save(ctx, p))

	t.Run("found", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "John", loaded.FirstName)
	})

	t.Run("absent identity yields nil", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, "#99:12345")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("malformed identity degrades to nil", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, "not-a-rid")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})
}

func TestRepository_SaveWithMalformedIdentityInsertsFresh(t *testing.T) {
	repo, _ := newFixture(t)
	ctx := context.Background()

	p := &TestPerson{ID: "garbage", FirstName: "John"}
	require.NoError(t, repo.Save(ctx, p))

	_, err := gorient.ParseRID(p.ID)
	assert.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepository_CountOnEmptyIsZero(t *testing.T) {
	repo, _ := newFixture(t)

	count, err := repo.Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRepository_DerivedQueries(t *testing.T) {
	repo, _ := newFixture(t)
	ctx := context.Background()
	seedPeople(t, repo, 10)

	t.Run("find by two properties", func(t *testing.T) {
		mq, err := repo.Derive("findByFirstNameAndLastName")
		require.NoError(t, err)
		assert.Equal(t, "SELECT FROM TestPerson WHERE firstName = ? AND lastName = ?", mq.Statement())

		matches, err := mq.Find(ctx, "First03", "Last03")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, 23, matches[0].Age)
	})

	t.Run("greater than equal", func(t *testing.T) {
		mq, err := repo.Derive("findByAgeGreaterThanEqual")
		require.NoError(t, err)
		assert.Equal(t, "SELECT FROM TestPerson WHERE age >= ?", mq.Statement())

		matches, err := mq.Find(ctx, 27)
		require.NoError(t, err)
		assert.Len(t, matches, 3)
	})

	t.Run("between", func(t *testing.T) {
		mq, err := repo.Derive("findByAgeBetween")
		require.NoError(t, err)

		matches, err := mq.Find(ctx, 22, 24)
		require.NoError(t, err)
		assert.Len(t, matches, 3)
	})

	t.Run("or groups", func(t *testing.T) {
		mq, err := repo.Derive("findByFirstNameOrLastName")
		require.NoError(t, err)

		matches, err := mq.Find(ctx, "First01", "Last04")
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("containing wraps wildcards", func(t *testing.T) {
		mq, err := repo.Derive("findByLastNameContaining")
		require.NoError(t, err)

		matches, err := mq.Find(ctx, "st0")
		require.NoError(t, err)
		assert.Len(t, matches, 10)
	})

	t.Run("ordered select", func(t *testing.T) {
		mq, err := repo.Derive("findByActiveTrueOrderByAgeDesc")
		require.NoError(t, err)

		matches, err := mq.Find(ctx)
		require.NoError(t, err)
		require.Len(t, matches, 5)
		assert.Equal(t, 28, matches[0].Age)
		assert.Equal(t, 20, matches[4].Age)
	})

	t.Run("top limits the result", func(t *testing.T) {
		mq, err := repo.Derive("findTop3ByAgeGreaterThanOrderByAgeAsc")
		require.NoError(t, err)

		matches, err := mq.Find(ctx, 21)
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, 22, matches[0].Age)
	})

	t.Run("count", func(t *testing.T) {
		mq, err := repo.Derive("countByActive")
		require.NoError(t, err)

		n, err := mq.Count(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})

	t.Run("exists", func(t *testing.T) {
		mq, err := repo.Derive("existsByFirstName")
		require.NoError(t, err)

		ok, err := mq.Exists(ctx, "First07")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = mq.Exists(ctx, "Nobody")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		mq, err := repo.Derive("deleteByActive")
		require.NoError(t, err)
		assert.Equal(t, "DELETE VERTEX TestPerson WHERE active = ?", mq.Statement())

		n, err := mq.Delete(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), count)
	})

	t.Run("shape mismatch is rejected", func(t *testing.T) {
		mq, err := repo.Derive("countByActive")
		require.NoError(t, err)

		_, err = mq.Find(ctx, true)
		assert.Error(t, err)
	})

	t.Run("unsupported keyword fails at derivation", func(t *testing.T) {
		_, err := repo.Derive("findByFirstNameSoundsLike")
		require.Error(t, err)
		assert.True(t, gorient.IsMappingConfiguration(err))
	})
}

func TestRepository_Pagination(t *testing.T) {
	repo, _ := newFixture(t)
	ctx := context.Background()
	seedPeople(t, repo, 25)

	sortByAge := query.SortSpec{{Property: "age"}}

	t.Run("first page", func(t *testing.T) {
		page, err := repo.FindPage(ctx, query.PageRequest(0, 10).WithSort(sortByAge))
		require.NoError(t, err)

		assert.Len(t, page.Content, 10)
		assert.Equal(t, int64(25), page.TotalElements)
		assert.True(t, page.HasNext())
		assert.False(t, page.HasPrevious())
		assert.Equal(t, 20, page.Content[0].Age)
	})

	t.Run("last partial page", func(t *testing.T) {
		page, err := repo.FindPage(ctx, query.PageRequest(2, 10).WithSort(sortByAge))
		require.NoError(t, err)

		assert.Len(t, page.Content, 5)
		assert.False(t, page.HasNext())
		assert.True(t, page.HasPrevious())
		assert.Equal(t, 40, page.Content[0].Age)
	})

	t.Run("unpaged returns everything", func(t *testing.T) {
		page, err := repo.FindPage(ctx, query.Pageable{})
		require.NoError(t, err)

		assert.Len(t, page.Content, 25)
		assert.False(t, page.HasNext())
	})
}

func TestRepository_QueryByExample(t *testing.T) {
	repo, _ := newFixture(t)
	ctx := context.Background()
	seedPeople(t, repo, 5)

	t.Run("probe matches on set fields only", func(t *testing.T) {
		matches, err := repo.FindAllByExample(ctx, query.ExampleOf(TestPerson{LastName: "Last02"}))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "First02", matches[0].FirstName)
	})

	t.Run("ignore case", func(t *testing.T) {
		example := query.Example{
			Probe:   TestPerson{LastName: "LAST02"},
			Matcher: query.ExampleMatcher{IgnoreCase: true},
		}
		matches, err := repo.FindAllByExample(ctx, example)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("find one rejects ambiguity", func(t *testing.T) {
		_, err := repo.FindOneByExample(ctx, query.ExampleOf(TestPerson{Age: 0, Active: true}))
		assert.Error(t, err)
	})

	t.Run("count by example", func(t *testing.T) {
		n, err := repo.CountByExample(ctx, query.ExampleOf(TestPerson{Active: true}))
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestRepository_CustomQueries(t *testing.T) {
	repo, _ := newFixture(t)
	ctx := context.Background()
	seedPeople(t, repo, 5)

	matches, err := repo.Query(ctx, "SELECT FROM TestPerson WHERE age > ?", 22)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	single, err := repo.QuerySingle(ctx, "SELECT FROM TestPerson WHERE firstName = ?", "First01")
	require.NoError(t, err)
	require.NotNil(t, single)
	assert.Equal(t, "Last01", single.LastName)

	missing, err := repo.QuerySingle(ctx, "SELECT FROM TestPerson WHERE firstName = ?", "Nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_DeleteOperations(t *testing.T) {
	repo, _ := newFixture(t)
	ctx := context.Background()
	seedPeople(t, repo, 4)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)

	t.Run("delete without identity fails", func(t *testing.T) {
		err := repo.Delete(ctx, &TestPerson{FirstName: "ghost"})
		require.Error(t, err)
		assert.True(t, gorient.IsIdentityMissing(err))
	})

	t.Run("delete by id", func(t *testing.T) {
		require.NoError(t, repo.DeleteByID(ctx, all[0].ID))

		gone, err := repo.FindByID(ctx, all[0].ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("delete entity", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, all[1]))

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("delete all", func(t *testing.T) {
		n, err := repo.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func TestTransactionManager(t *testing.T) {
	t.Run("rollback on error reverts writes", func(t *testing.T) {
		repo, pool := newFixture(t)
		ctx := context.Background()
		tm := gorient.NewTransactionManager(pool, nil)

		boom := errors.New("boom")
		err := tm.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := repo.Save(txCtx, &TestPerson{FirstName: "John"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("commit keeps writes", func(t *testing.T) {
		repo, pool := newFixture(t)
		ctx := context.Background()
		tm := gorient.NewTransactionManager(pool, nil)

		err := tm.WithTransaction(ctx, func(txCtx context.Context) error {
			return repo.Save(txCtx, &TestPerson{FirstName: "John"})
		})
		require.NoError(t, err)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("nested begin is rejected", func(t *testing.T) {
		_, pool := newFixture(t)
		tm := gorient.NewTransactionManager(pool, nil)

		txCtx, err := tm.Begin(context.Background())
		require.NoError(t, err)
		defer tm.Rollback(txCtx)

		_, err = tm.Begin(txCtx)
		assert.Error(t, err)
	})

	t.Run("bound state is visible", func(t *testing.T) {
		_, pool := newFixture(t)
		tm := gorient.NewTransactionManager(pool, nil)

		ctx := context.Background()
		assert.False(t, gorient.TransactionActive(ctx))

		txCtx, err := tm.Begin(ctx)
		require.NoError(t, err)
		assert.True(t, gorient.TransactionActive(txCtx))

		require.NoError(t, tm.Commit(txCtx))
		assert.False(t, gorient.TransactionActive(txCtx))
	})
}

func TestQueryProjection(t *testing.T) {
	pool := memory.NewStore(nil).Pool()
	tmpl := gorient.NewTemplate(pool, mapping.NewRegistry(nil), nil)
	repo := gorient.NewRepository[TestPerson](tmpl)
	ctx := context.Background()

	require.NoError(t, repo.SaveAll(ctx, []*TestPerson{
		{FirstName: "Ada", LastName: "Lovelace", Age: 36, Active: true},
		{FirstName: "Grace", LastName: "Hopper", Age: 45},
	}))

	type nameAndAge struct {
		FirstName string
		Age       int
	}

	dtos, err := gorient.QueryProjection[nameAndAge](ctx, tmpl,
		"SELECT FROM TestPerson WHERE active = true")
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, "Ada", dtos[0].FirstName)
	assert.Equal(t, 36, dtos[0].Age)
}

func TestAsyncRepository(t *testing.T) {
	repo, _ := newFixture(t)
	ctx := context.Background()
	async := gorient.NewAsyncRepository(repo)

	saved := <-async.Save(ctx, &TestPerson{FirstName: "John", LastName: "Smith"})
	require.NoError(t, saved.Err)
	require.NotNil(t, saved.Value)
	assert.NotEmpty(t, saved.Value.ID)

	found := <-async.FindByID(ctx, saved.Value.ID)
	require.NoError(t, found.Err)
	require.NotNil(t, found.Value)
	assert.Equal(t, "John", found.Value.FirstName)

	count := <-async.Count(ctx)
	require.NoError(t, count.Err)
	assert.Equal(t, int64(1), count.Value)
}
