package gorient

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"gorient/mapping"
	"gorient/query"
)

// Template is the operation facade every higher-level surface is built on.
// It owns the object/record round trip, the statement dispatch, and the
// bound/unbound session handling.
//
// Error policy: read lookups degrade to an empty result when the session
// fails, with the swallowed cause logged at Warn so a genuine absence stays
// distinguishable from a data-layer failure in the diagnostics. Write
// failures always propagate wrapped in DataAccessError.
type Template struct {
	pool     Pool
	registry *mapping.Registry
	conv     *Converter
	logger   *zap.Logger
	clock    func() time.Time
}

// NewTemplate creates a template over the given pool. A nil logger disables
// logging.
func NewTemplate(pool Pool, registry *mapping.Registry, logger *zap.Logger) *Template {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Template{
		pool:     pool,
		registry: registry,
		conv:     NewConverter(registry),
		logger:   logger,
		clock:    time.Now,
	}
}

// Registry exposes the entity metadata registry the template maps with.
func (t *Template) Registry() *mapping.Registry { return t.registry }

// execute runs fn with a session. A context bound by a TransactionManager
// supplies the ambient session and keeps ownership of commit, rollback and
// close. Unbound, a scratch session is acquired and closed here; writes get
// their own transaction around fn.
func (t *Template) execute(ctx context.Context, write bool, fn func(Session) error) error {
	if session, ok := BoundSession(ctx); ok {
		return fn(session)
	}

	session, err := t.pool.Acquire(ctx)
	if err != nil {
		return DataAccessError{Operation: "acquire session", Err: err}
	}
	defer session.Close(ctx)

	if !write {
		return fn(session)
	}

	if err := session.Begin(ctx); err != nil {
		return DataAccessError{Operation: "begin", Err: err}
	}
	if err := fn(session); err != nil {
		if rbErr := session.Rollback(ctx); rbErr != nil {
			t.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := session.Commit(ctx); err != nil {
		return DataAccessError{Operation: "commit", Err: err}
	}
	return nil
}

// Save persists the entity: update when its identity resolves to an existing
// record, insert otherwise. A malformed string identity or a vanished record
// falls back to inserting a fresh record rather than failing; the fallback
// is logged because it can mask a caller-side identity mistake. After the
// write the assigned identity and the new version counter are copied back
// onto the entity.
func (t *Template) Save(ctx context.Context, entity any) error {
	model := t.registry.Of(entity)
	mapping.InvokePrePersist(entity, t.clock())

	return t.execute(ctx, true, func(session Session) error {
		return t.saveOne(ctx, session, model, entity)
	})
}

// SaveAll persists every entity in the slice within one session (and, when
// unbound, one transaction).
func (t *Template) SaveAll(ctx context.Context, entities any) error {
	v := reflect.ValueOf(entities)
	if v.Kind() != reflect.Slice {
		return fmt.Errorf("SaveAll wants a slice, got %T", entities)
	}
	now := t.clock()
	for i := 0; i < v.Len(); i++ {
		mapping.InvokePrePersist(v.Index(i).Interface(), now)
	}

	return t.execute(ctx, true, func(session Session) error {
		for i := 0; i < v.Len(); i++ {
			entity := v.Index(i).Interface()
			if err := t.saveOne(ctx, session, t.registry.Of(entity), entity); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *Template) saveOne(ctx context.Context, session Session, model *mapping.MappedEntity, entity any) error {
	rec := t.recordFor(ctx, session, model, entity)
	if err := t.conv.Write(entity, rec); err != nil {
		return err
	}
	if err := session.Save(ctx, rec); err != nil {
		return DataAccessError{Operation: "save " + model.RecordName, Err: err}
	}
	return t.writeBack(model, entity, rec)
}

// recordFor resolves the record a save targets: the loaded existing record
// when the entity carries a resolvable identity, a fresh one otherwise.
func (t *Template) recordFor(ctx context.Context, session Session, model *mapping.MappedEntity, entity any) Record {
	rid, ok := t.identityOf(model, entity)
	if !ok {
		return session.NewRecord(model.RecordName)
	}

	rec, err := session.Load(ctx, rid)
	if err != nil {
		t.logger.Warn("load before save failed, inserting new record",
			zap.String("recordName", model.RecordName),
			zap.String("rid", rid.String()),
			zap.Error(err),
		)
		return session.NewRecord(model.RecordName)
	}
	if rec == nil {
		return session.NewRecord(model.RecordName)
	}
	return rec
}

// identityOf extracts the entity's identity as a RID. A malformed string
// identity resolves to "no identity" so saves degrade to insert; the parse
// failure is logged.
func (t *Template) identityOf(model *mapping.MappedEntity, entity any) (RID, bool) {
	v := model.IdentityValue(entity)
	if !v.IsValid() {
		return "", false
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}

	if v.Type() == ridType {
		rid := v.Interface().(RID)
		return rid, rid.Valid()
	}
	if v.Kind() == reflect.String {
		s := v.String()
		if s == "" {
			return "", false
		}
		rid, err := ParseRID(s)
		if err != nil {
			t.logger.Warn("malformed string identity, treating as absent",
				zap.String("recordName", model.RecordName),
				zap.String("identity", s),
				zap.Error(err),
			)
			return "", false
		}
		return rid, true
	}
	return "", false
}

// writeBack copies the engine-assigned identity and version counter onto the
// entity after a save.
func (t *Template) writeBack(model *mapping.MappedEntity, entity any, rec Record) error {
	if model.Identity != nil {
		if err := t.conv.setIdentity(model, entity, rec.Identity()); err != nil {
			return err
		}
	}
	if model.Version != nil {
		value, err := coerce(rec.Version(), model.Version.Type)
		if err != nil {
			return fmt.Errorf("write back %s version: %w", model.Type.Name(), err)
		}
		model.SetFieldValue(entity, model.Version, value)
	}
	return nil
}

// FindByID looks an entity up by identity. Absence, a malformed string
// identity and a failed load all yield (nil, nil); the two failure cases are
// logged with their cause so they stay distinguishable from plain absence.
func (t *Template) FindByID(ctx context.Context, typ reflect.Type, id any) (any, error) {
	model := t.registry.GetOrBuild(typ)

	rid, ok := t.ridOf(model, id)
	if !ok {
		return nil, nil
	}

	var result any
	err := t.execute(ctx, false, func(session Session) error {
		rec, err := session.Load(ctx, rid)
		if err != nil {
			t.logger.Warn("lookup failed, degrading to not found",
				zap.String("recordName", model.RecordName),
				zap.String("rid", rid.String()),
				zap.Error(err),
			)
			return nil
		}
		result, err = t.conv.Read(typ, rec)
		return err
	})
	return result, err
}

// ridOf normalizes a caller-supplied identity value (RID or string) into a
// RID. Malformed strings resolve to not-found, logged.
func (t *Template) ridOf(model *mapping.MappedEntity, id any) (RID, bool) {
	switch v := id.(type) {
	case RID:
		return v, v.Valid()
	case string:
		rid, err := ParseRID(v)
		if err != nil {
			t.logger.Warn("malformed identity in lookup, degrading to not found",
				zap.String("recordName", model.RecordName),
				zap.String("identity", v),
				zap.Error(err),
			)
			return "", false
		}
		return rid, true
	default:
		t.logger.Warn("unsupported identity type in lookup, degrading to not found",
			zap.String("recordName", model.RecordName),
			zap.String("identityType", fmt.Sprintf("%T", id)),
		)
		return "", false
	}
}

// FindAll returns every stored entity of the type.
func (t *Template) FindAll(ctx context.Context, typ reflect.Type) ([]any, error) {
	model := t.registry.GetOrBuild(typ)
	return t.Query(ctx, typ, query.RenderSelect(model.RecordName, nil, nil, 0))
}

// Query executes read statement text and converts every returned record. A
// session failure degrades to an empty result, logged with its cause.
func (t *Template) Query(ctx context.Context, typ reflect.Type, text string, params ...any) ([]any, error) {
	var results []any
	err := t.execute(ctx, false, func(session Session) error {
		recs, err := session.Query(ctx, text, params...)
		if err != nil {
			t.logger.Warn("query failed, degrading to empty result",
				zap.String("statement", text),
				zap.Error(err),
			)
			return nil
		}
		results = make([]any, 0, len(recs))
		for _, rec := range recs {
			entity, err := t.conv.Read(typ, rec)
			if err != nil {
				return err
			}
			results = append(results, entity)
		}
		return nil
	})
	return results, err
}

// QueryRecords executes read statement text and returns the raw records
// without entity conversion, for callers that project rows themselves. A
// session failure degrades to an empty result, logged with its cause.
func (t *Template) QueryRecords(ctx context.Context, text string, params ...any) ([]Record, error) {
	var results []Record
	err := t.execute(ctx, false, func(session Session) error {
		recs, err := session.Query(ctx, text, params...)
		if err != nil {
			t.logger.Warn("record query failed, degrading to empty result",
				zap.String("statement", text),
				zap.Error(err),
			)
			return nil
		}
		results = recs
		return nil
	})
	return results, err
}

// QuerySingle executes read statement text expecting at most one result.
// No match yields (nil, nil).
func (t *Template) QuerySingle(ctx context.Context, typ reflect.Type, text string, params ...any) (any, error) {
	results, err := t.Query(ctx, typ, text, params...)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// QueryScalar executes read statement text and extracts the named property
// of the first row as an int64, defaulting when the result is empty. Count
// queries read the property literally named "count"; the count of nothing
// is zero, not an error.
func (t *Template) QueryScalar(ctx context.Context, text, property string, def int64, params ...any) (int64, error) {
	var result = def
	err := t.execute(ctx, false, func(session Session) error {
		recs, err := session.Query(ctx, text, params...)
		if err != nil {
			t.logger.Warn("scalar query failed, degrading to default",
				zap.String("statement", text),
				zap.Error(err),
			)
			return nil
		}
		if len(recs) == 0 {
			return nil
		}
		raw, ok := recs[0].Get(property)
		if !ok {
			return nil
		}
		switch v := raw.(type) {
		case int64:
			result = v
		case int:
			result = int64(v)
		case int32:
			result = int64(v)
		case float64:
			result = int64(v)
		default:
			return fmt.Errorf("scalar property %q has unsupported type %T", property, raw)
		}
		return nil
	})
	return result, err
}

// Count returns the number of stored entities of the type.
func (t *Template) Count(ctx context.Context, typ reflect.Type) (int64, error) {
	model := t.registry.GetOrBuild(typ)
	return t.QueryScalar(ctx, query.RenderCount(model.RecordName, nil), "count", 0)
}

// ExistsByID reports whether a record with the identity exists.
func (t *Template) ExistsByID(ctx context.Context, typ reflect.Type, id any) (bool, error) {
	entity, err := t.FindByID(ctx, typ, id)
	if err != nil {
		return false, err
	}
	return entity != nil, nil
}

// Command executes side-effecting statement text. Failures propagate.
func (t *Template) Command(ctx context.Context, text string, params ...any) (int, error) {
	var affected int
	err := t.execute(ctx, true, func(session Session) error {
		n, err := session.Command(ctx, text, params...)
		if err != nil {
			return DataAccessError{Operation: "command", Err: err}
		}
		affected = n
		return nil
	})
	return affected, err
}

// Delete removes the entity's record. An entity without an identity value
// cannot be deleted.
func (t *Template) Delete(ctx context.Context, entity any) error {
	model := t.registry.Of(entity)
	rid, ok := t.identityOf(model, entity)
	if !ok {
		return IdentityMissingError{Entity: model.Type.Name(), Operation: "delete"}
	}
	mapping.InvokePreRemove(entity)
	return t.deleteRID(ctx, model, rid)
}

// DeleteByID removes the record with the given identity. A malformed string
// identity is a no-op, logged.
func (t *Template) DeleteByID(ctx context.Context, typ reflect.Type, id any) error {
	model := t.registry.GetOrBuild(typ)
	rid, ok := t.ridOf(model, id)
	if !ok {
		return nil
	}
	return t.deleteRID(ctx, model, rid)
}

func (t *Template) deleteRID(ctx context.Context, model *mapping.MappedEntity, rid RID) error {
	return t.execute(ctx, true, func(session Session) error {
		if err := session.Delete(ctx, rid); err != nil {
			return DataAccessError{Operation: "delete " + model.RecordName, Err: err}
		}
		return nil
	})
}

// DeleteAll removes every record of the type.
func (t *Template) DeleteAll(ctx context.Context, typ reflect.Type) (int, error) {
	model := t.registry.GetOrBuild(typ)
	return t.Command(ctx, query.RenderDelete(model.RecordName, nil))
}
