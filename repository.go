package gorient

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"gorient/mapping"
	"gorient/query"
)

// Repository is the typed facade applications work with: CRUD, pagination,
// query-by-example and name-derived queries for one entity type T.
type Repository[T any] struct {
	tmpl  *Template
	typ   reflect.Type
	model *mapping.MappedEntity

	mu      sync.RWMutex
	derived map[string]*query.DerivedQuery
}

// NewRepository creates a repository for T over the given template. The
// entity model is built eagerly so mapping mistakes surface at construction.
func NewRepository[T any](tmpl *Template) *Repository[T] {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	return &Repository[T]{
		tmpl:    tmpl,
		typ:     typ,
		model:   tmpl.Registry().GetOrBuild(typ),
		derived: make(map[string]*query.DerivedQuery),
	}
}

// Save persists the entity, assigning identity and version on insert.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	return r.tmpl.Save(ctx, entity)
}

// SaveAll persists all entities in one session.
func (r *Repository[T]) SaveAll(ctx context.Context, entities []*T) error {
	return r.tmpl.SaveAll(ctx, entities)
}

// FindByID returns the entity with the given identity, or nil when absent.
func (r *Repository[T]) FindByID(ctx context.Context, id any) (*T, error) {
	result, err := r.tmpl.FindByID(ctx, r.typ, id)
	if err != nil || result == nil {
		return nil, err
	}
	return result.(*T), nil
}

// FindAllByID returns the entities whose identities were found, skipping
// absent ones.
func (r *Repository[T]) FindAllByID(ctx context.Context, ids []any) ([]*T, error) {
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		entity, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if entity != nil {
			out = append(out, entity)
		}
	}
	return out, nil
}

// FindAll returns every stored entity.
func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	return r.findList(ctx, query.RenderSelect(r.model.RecordName, nil, nil, 0))
}

// FindAllSorted returns every stored entity in the given order.
func (r *Repository[T]) FindAllSorted(ctx context.Context, sort query.SortSpec) ([]*T, error) {
	return r.findList(ctx, query.RenderSelect(r.model.RecordName, nil, sort, 0))
}

// FindPage returns one page of entities with the page math filled in. An
// unpaged request returns everything as a single page.
func (r *Repository[T]) FindPage(ctx context.Context, pageable query.Pageable) (query.Page[*T], error) {
	if pageable.Unpaged() {
		content, err := r.FindAllSorted(ctx, pageable.Sort)
		if err != nil {
			return query.Page[*T]{}, err
		}
		return query.NewPage(content, pageable, int64(len(content))), nil
	}

	text := query.RenderSelect(r.model.RecordName, nil, pageable.Sort, 0) + query.PaginationClause(pageable)
	content, err := r.findList(ctx, text)
	if err != nil {
		return query.Page[*T]{}, err
	}
	total, err := r.Count(ctx)
	if err != nil {
		return query.Page[*T]{}, err
	}
	return query.NewPage(content, pageable, total), nil
}

// Count returns the number of stored entities.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	return r.tmpl.Count(ctx, r.typ)
}

// ExistsByID reports whether an entity with the identity exists.
func (r *Repository[T]) ExistsByID(ctx context.Context, id any) (bool, error) {
	return r.tmpl.ExistsByID(ctx, r.typ, id)
}

// Delete removes the entity's record.
func (r *Repository[T]) Delete(ctx context.Context, entity *T) error {
	return r.tmpl.Delete(ctx, entity)
}

// DeleteByID removes the record with the given identity.
func (r *Repository[T]) DeleteByID(ctx context.Context, id any) error {
	return r.tmpl.DeleteByID(ctx, r.typ, id)
}

// DeleteAllEntities removes every given entity.
func (r *Repository[T]) DeleteAllEntities(ctx context.Context, entities []*T) error {
	for _, entity := range entities {
		if err := r.Delete(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAll removes every stored entity and reports how many went.
func (r *Repository[T]) DeleteAll(ctx context.Context) (int, error) {
	return r.tmpl.DeleteAll(ctx, r.typ)
}

// Query executes custom read statement text and maps the results.
func (r *Repository[T]) Query(ctx context.Context, text string, params ...any) ([]*T, error) {
	return r.findList(ctx, text, params...)
}

// QuerySingle executes custom read statement text expecting at most one
// result; nil when there is none.
func (r *Repository[T]) QuerySingle(ctx context.Context, text string, params ...any) (*T, error) {
	result, err := r.tmpl.QuerySingle(ctx, r.typ, text, params...)
	if err != nil || result == nil {
		return nil, err
	}
	return result.(*T), nil
}

// FindAllByExample returns the entities matching the probe's set fields.
func (r *Repository[T]) FindAllByExample(ctx context.Context, example query.Example) ([]*T, error) {
	return r.FindPageByExample(ctx, example, query.Pageable{})
}

// FindPageByExample returns one page of entities matching the probe.
func (r *Repository[T]) FindPageByExample(ctx context.Context, example query.Example, pageable query.Pageable) ([]*T, error) {
	eq, err := query.BuildExample(r.model, example)
	if err != nil {
		return nil, err
	}
	text := query.RenderExampleSelect(r.model.RecordName, eq, pageable.Sort, pageable)
	return r.findList(ctx, text, eq.Parameters...)
}

// FindOneByExample returns the single entity matching the probe, nil when
// there is none and an error when the probe is ambiguous.
func (r *Repository[T]) FindOneByExample(ctx context.Context, example query.Example) (*T, error) {
	matches, err := r.FindAllByExample(ctx, example)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("example matched %d %s records, want at most one", len(matches), r.model.RecordName)
	}
}

// CountByExample counts the entities matching the probe.
func (r *Repository[T]) CountByExample(ctx context.Context, example query.Example) (int64, error) {
	eq, err := query.BuildExample(r.model, example)
	if err != nil {
		return 0, err
	}
	text := query.RenderExampleCount(r.model.RecordName, eq)
	return r.tmpl.QueryScalar(ctx, text, "count", 0, eq.Parameters...)
}

// ExistsByExample reports whether any entity matches the probe.
func (r *Repository[T]) ExistsByExample(ctx context.Context, example query.Example) (bool, error) {
	n, err := r.CountByExample(ctx, example)
	return n > 0, err
}

// Derive parses a repository method name into an executable query. Parsing
// happens once per name; configuration errors (unknown operator keyword,
// unresolvable property) surface here, not at execution.
func (r *Repository[T]) Derive(methodName string) (*MethodQuery[T], error) {
	r.mu.RLock()
	q, ok := r.derived[methodName]
	r.mu.RUnlock()

	if !ok {
		var err error
		q, err = query.Parse(methodName, r.model)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.derived[methodName] = q
		r.mu.Unlock()
	}
	return &MethodQuery[T]{repo: r, q: q}, nil
}

func (r *Repository[T]) findList(ctx context.Context, text string, params ...any) ([]*T, error) {
	results, err := r.tmpl.Query(ctx, r.typ, text, params...)
	if err != nil {
		return nil, err
	}
	out := make([]*T, len(results))
	for i, result := range results {
		out[i] = result.(*T)
	}
	return out, nil
}

// MethodQuery is one parsed, executable derived query bound to its
// repository. The entry point matching the parsed statement shape must be
// used: Find for selects, Count/Exists for count shapes, Delete for deletes.
type MethodQuery[T any] struct {
	repo *Repository[T]
	q    *query.DerivedQuery
}

// Statement returns the rendered query text, mostly for diagnostics.
func (m *MethodQuery[T]) Statement() string {
	return query.Render(m.q, m.repo.model.RecordName)
}

// Arity is the number of arguments an invocation must supply.
func (m *MethodQuery[T]) Arity() int { return m.q.Arity() }

// Find executes a select-shaped derived query.
func (m *MethodQuery[T]) Find(ctx context.Context, args ...any) ([]*T, error) {
	if m.q.Shape != query.Select {
		return nil, fmt.Errorf("derived query %q is %s-shaped, not a select", m.q.Method, m.q.Shape)
	}
	params, err := m.q.BindParameters(args...)
	if err != nil {
		return nil, err
	}
	return m.repo.findList(ctx, m.Statement(), params...)
}

// FindOne executes a select-shaped derived query expecting at most one
// result; nil when there is none.
func (m *MethodQuery[T]) FindOne(ctx context.Context, args ...any) (*T, error) {
	matches, err := m.Find(ctx, args...)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return matches[0], nil
}

// Count executes a count-shaped derived query.
func (m *MethodQuery[T]) Count(ctx context.Context, args ...any) (int64, error) {
	if m.q.Shape != query.Count && m.q.Shape != query.Exists {
		return 0, fmt.Errorf("derived query %q is %s-shaped, not a count", m.q.Method, m.q.Shape)
	}
	params, err := m.q.BindParameters(args...)
	if err != nil {
		return 0, err
	}
	return m.repo.tmpl.QueryScalar(ctx, m.Statement(), "count", 0, params...)
}

// Exists executes an exists-shaped derived query as count > 0.
func (m *MethodQuery[T]) Exists(ctx context.Context, args ...any) (bool, error) {
	n, err := m.Count(ctx, args...)
	return n > 0, err
}

// Delete executes a delete-shaped derived query and reports how many
// records went.
func (m *MethodQuery[T]) Delete(ctx context.Context, args ...any) (int, error) {
	if m.q.Shape != query.Delete {
		return 0, fmt.Errorf("derived query %q is %s-shaped, not a delete", m.q.Method, m.q.Shape)
	}
	params, err := m.q.BindParameters(args...)
	if err != nil {
		return 0, err
	}
	return m.repo.tmpl.Command(ctx, m.Statement(), params...)
}
