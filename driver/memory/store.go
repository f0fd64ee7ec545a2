// Package memory is an in-process database driver. It stores records in
// maps, evaluates the query-language subset the library renders, and
// supports snapshot transactions. Intended for tests and embedded use.
package memory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"gorient"
)

// Store is the shared in-memory database. Safe for concurrent sessions;
// every operation takes the store lock.
type Store struct {
	mu      sync.Mutex
	classes map[string]map[gorient.RID]*storedRecord
	// cluster and position counters drive #cluster:position identity
	// assignment, one cluster per vertex class.
	clusters    map[string]int
	nextCluster int
	positions   map[string]int64
	logger      *zap.Logger
}

type storedRecord struct {
	class   string
	version int
	props   map[string]any
}

// NewStore creates an empty store. A nil logger disables logging.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		classes:     make(map[string]map[gorient.RID]*storedRecord),
		clusters:    make(map[string]int),
		nextCluster: 9,
		positions:   make(map[string]int64),
		logger:      logger,
	}
}

// Pool returns a session pool over this store.
func (s *Store) Pool() gorient.Pool { return pool{store: s} }

type pool struct{ store *Store }

func (p pool) Acquire(ctx context.Context) (gorient.Session, error) {
	return newSession(p.store), nil
}

func (s *Store) classOf(name string) map[gorient.RID]*storedRecord {
	c, ok := s.classes[name]
	if !ok {
		c = make(map[gorient.RID]*storedRecord)
		s.classes[name] = c
	}
	return c
}

func (s *Store) assignRID(class string) gorient.RID {
	cluster, ok := s.clusters[class]
	if !ok {
		cluster = s.nextCluster
		s.nextCluster++
		s.clusters[class] = cluster
	}
	pos := s.positions[class]
	s.positions[class]++
	return gorient.RID(fmt.Sprintf("#%d:%d", cluster, pos))
}

// save persists the record's property map, assigning an identity on first
// save and bumping the version counter on every save.
func (s *Store) save(rec *record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	class := s.classOf(rec.class)
	if !rec.rid.Valid() {
		rec.rid = s.assignRID(rec.class)
		stored := &storedRecord{class: rec.class, version: 1, props: copyProps(rec.props)}
		class[rec.rid] = stored
		rec.version = 1
		return nil
	}

	stored, ok := class[rec.rid]
	if !ok {
		stored = &storedRecord{class: rec.class, version: 0}
		class[rec.rid] = stored
	}
	stored.version++
	stored.props = copyProps(rec.props)
	rec.version = stored.version
	return nil
}

// load returns a detached copy of the stored record, or nil when absent.
func (s *Store) load(rid gorient.RID) *record {
	s.mu.Lock()
	defer s.mu.Unlock()

	for class, recs := range s.classes {
		if stored, ok := recs[rid]; ok {
			return &record{rid: rid, class: class, version: stored.version, props: copyProps(stored.props)}
		}
	}
	return nil
}

func (s *Store) delete(rid gorient.RID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, recs := range s.classes {
		if _, ok := recs[rid]; ok {
			delete(recs, rid)
			return
		}
	}
}

// all returns detached copies of every record of the class, unordered.
func (s *Store) all(class string) []*record {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.classes[class]
	out := make([]*record, 0, len(recs))
	for rid, stored := range recs {
		out = append(out, &record{rid: rid, class: class, version: stored.version, props: copyProps(stored.props)})
	}
	return out
}

func (s *Store) deleteMatching(class string, rids []gorient.RID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.classes[class]
	n := 0
	for _, rid := range rids {
		if _, ok := recs[rid]; ok {
			delete(recs, rid)
			n++
		}
	}
	return n
}

// snapshot deep-copies the record data for transaction rollback.
func (s *Store) snapshot() map[string]map[gorient.RID]*storedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := make(map[string]map[gorient.RID]*storedRecord, len(s.classes))
	for class, recs := range s.classes {
		copied := make(map[gorient.RID]*storedRecord, len(recs))
		for rid, stored := range recs {
			copied[rid] = &storedRecord{class: stored.class, version: stored.version, props: copyProps(stored.props)}
		}
		snap[class] = copied
	}
	return snap
}

func (s *Store) restore(snap map[string]map[gorient.RID]*storedRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = snap
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// record implements gorient.Record as a detached property bag.
type record struct {
	rid     gorient.RID
	class   string
	version int
	props   map[string]any
}

func (r *record) Identity() gorient.RID { return r.rid }
func (r *record) Version() int          { return r.version }

func (r *record) Get(name string) (any, bool) {
	v, ok := r.props[name]
	return v, ok
}

// Set stores the value. A nil value is kept as an explicit null rather than
// removing the property.
func (r *record) Set(name string, value any) {
	if r.props == nil {
		r.props = make(map[string]any)
	}
	r.props[name] = value
}

func (r *record) PropertyNames() []string {
	names := make([]string, 0, len(r.props))
	for name := range r.props {
		names = append(names, name)
	}
	return names
}
