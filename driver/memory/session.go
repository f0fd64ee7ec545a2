package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gorient"
)

// session is one unit of access to the store. Transactions are snapshot
// based: Begin captures the store's record data, Rollback restores it,
// Commit discards the snapshot. This gives real rollback semantics at the
// cost of serializing transactional writers, which is fine for the driver's
// test and embedded audience.
type session struct {
	store  *Store
	id     string
	logger *zap.Logger
	snap   map[string]map[gorient.RID]*storedRecord
	closed bool
}

func newSession(store *Store) *session {
	id := uuid.NewString()
	store.logger.Debug("session opened", zap.String("session", id))
	return &session{store: store, id: id, logger: store.logger}
}

func (s *session) Load(ctx context.Context, rid gorient.RID) (gorient.Record, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	rec := s.store.load(rid)
	if rec == nil {
		return nil, nil
	}
	return rec, nil
}

func (s *session) Query(ctx context.Context, text string, params ...any) ([]gorient.Record, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.logger.Debug("query", zap.String("session", s.id), zap.String("statement", text))

	stmt, err := parseStatement(text, params)
	if err != nil {
		return nil, err
	}
	switch stmt.kind {
	case stmtSelect:
		recs, err := stmt.selectRecords(s.store)
		if err != nil {
			return nil, err
		}
		out := make([]gorient.Record, len(recs))
		for i, rec := range recs {
			out[i] = rec
		}
		return out, nil
	case stmtCount:
		n, err := stmt.countRecords(s.store)
		if err != nil {
			return nil, err
		}
		return []gorient.Record{&record{props: map[string]any{"count": n}}}, nil
	default:
		return nil, fmt.Errorf("statement is not a query: %s", text)
	}
}

func (s *session) Command(ctx context.Context, text string, params ...any) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	s.logger.Debug("command", zap.String("session", s.id), zap.String("statement", text))

	stmt, err := parseStatement(text, params)
	if err != nil {
		return 0, err
	}
	switch stmt.kind {
	case stmtDelete:
		return stmt.deleteRecords(s.store)
	case stmtDDL:
		// Schema is implicit in this driver; DDL succeeds as a no-op.
		return 0, nil
	default:
		return 0, fmt.Errorf("statement is not a command: %s", text)
	}
}

func (s *session) NewRecord(recordName string) gorient.Record {
	return &record{class: recordName, props: make(map[string]any)}
}

func (s *session) Save(ctx context.Context, rec gorient.Record) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	r, ok := rec.(*record)
	if !ok {
		return fmt.Errorf("record %T was not created by this driver", rec)
	}
	return s.store.save(r)
}

func (s *session) Delete(ctx context.Context, rid gorient.RID) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.store.delete(rid)
	return nil
}

func (s *session) Begin(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.snap != nil {
		return fmt.Errorf("transaction already begun on session %s", s.id)
	}
	s.snap = s.store.snapshot()
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.snap == nil {
		return fmt.Errorf("no transaction on session %s", s.id)
	}
	s.snap = nil
	return nil
}

func (s *session) Rollback(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.snap == nil {
		return fmt.Errorf("no transaction on session %s", s.id)
	}
	s.store.restore(s.snap)
	s.snap = nil
	return nil
}

func (s *session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	// An open transaction abandoned at close rolls back.
	if s.snap != nil {
		s.store.restore(s.snap)
		s.snap = nil
	}
	s.closed = true
	s.logger.Debug("session closed", zap.String("session", s.id))
	return nil
}

func (s *session) check(ctx context.Context) error {
	if s.closed {
		return fmt.Errorf("session %s is closed", s.id)
	}
	return ctx.Err()
}
