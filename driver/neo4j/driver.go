// Package neo4j adapts the library's session surface onto a Neo4j server
// via the official Bolt driver. Records are nodes labeled with the vertex
// class; the node elementId serves as the native record identity and a
// _version property carries the version counter Neo4j does not provide.
//
// Statement text handed to Query and Command is passed through to the
// server as Cypher after converting positional ? placeholders to $p0..$pN
// named parameters. Derived-query SQL is not translated; use this adapter
// with custom Cypher text or the identity-based operations.
package neo4j

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"gorient"
)

// Pool hands out sessions backed by one Bolt driver. The driver does its
// own connection pooling; a Pool is cheap and safe to share.
type Pool struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewPool connects to the server and verifies connectivity. A nil logger
// disables logging.
func NewPool(ctx context.Context, uri, username, password, database string, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify connectivity: %w", err)
	}
	return &Pool{driver: driver, database: database, logger: logger}, nil
}

// Acquire opens one driver session.
func (p *Pool) Acquire(ctx context.Context) (gorient.Session, error) {
	inner := p.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: p.database})
	return &session{inner: inner, logger: p.logger}, nil
}

// Close releases the underlying driver.
func (p *Pool) Close(ctx context.Context) error {
	return p.driver.Close(ctx)
}

const versionProp = "_version"

type session struct {
	inner  neo4j.SessionWithContext
	logger *zap.Logger
	tx     neo4j.ExplicitTransaction
}

// run routes through the open explicit transaction when one exists.
func (s *session) run(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error) {
	if s.tx != nil {
		return s.tx.Run(ctx, cypher, params)
	}
	return s.inner.Run(ctx, cypher, params)
}

func (s *session) Load(ctx context.Context, rid gorient.RID) (gorient.Record, error) {
	result, err := s.run(ctx,
		"MATCH (n) WHERE elementId(n) = $rid RETURN n",
		map[string]any{"rid": rid.String()},
	)
	if err != nil {
		return nil, err
	}
	rows, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	node, ok := rows[0].Values[0].(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("lookup of %s returned %T, want a node", rid, rows[0].Values[0])
	}
	return nodeRecord(node), nil
}

func (s *session) Query(ctx context.Context, text string, params ...any) ([]gorient.Record, error) {
	cypher, named := namedParams(text, params)
	result, err := s.run(ctx, cypher, named)
	if err != nil {
		return nil, err
	}
	rows, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]gorient.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowRecord(row))
	}
	return out, nil
}

func (s *session) Command(ctx context.Context, text string, params ...any) (int, error) {
	cypher, named := namedParams(text, params)
	result, err := s.run(ctx, cypher, named)
	if err != nil {
		return 0, err
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return 0, err
	}
	counters := summary.Counters()
	return counters.NodesCreated() + counters.NodesDeleted() + counters.PropertiesSet(), nil
}

func (s *session) NewRecord(recordName string) gorient.Record {
	return &record{class: recordName, props: make(map[string]any)}
}

func (s *session) Save(ctx context.Context, rec gorient.Record) error {
	r, ok := rec.(*record)
	if !ok {
		return fmt.Errorf("record %T was not created by this driver", rec)
	}

	if !r.rid.Valid() {
		result, err := s.run(ctx,
			fmt.Sprintf("CREATE (n:%s) SET n = $props, n.%s = 1 RETURN elementId(n)", r.class, versionProp),
			map[string]any{"props": r.props},
		)
		if err != nil {
			return err
		}
		row, err := result.Single(ctx)
		if err != nil {
			return err
		}
		r.rid = gorient.RID(row.Values[0].(string))
		r.version = 1
		return nil
	}

	result, err := s.run(ctx,
		fmt.Sprintf("MATCH (n) WHERE elementId(n) = $rid SET n = $props, n.%s = coalesce(n.%s, 0) + 1 RETURN n.%s",
			versionProp, versionProp, versionProp),
		map[string]any{"rid": r.rid.String(), "props": r.props},
	)
	if err != nil {
		return err
	}
	row, err := result.Single(ctx)
	if err != nil {
		return err
	}
	if v, ok := row.Values[0].(int64); ok {
		r.version = int(v)
	}
	return nil
}

func (s *session) Delete(ctx context.Context, rid gorient.RID) error {
	result, err := s.run(ctx,
		"MATCH (n) WHERE elementId(n) = $rid DETACH DELETE n",
		map[string]any{"rid": rid.String()},
	)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

func (s *session) Begin(ctx context.Context) error {
	if s.tx != nil {
		return fmt.Errorf("transaction already begun")
	}
	tx, err := s.inner.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return fmt.Errorf("no transaction begun")
	}
	err := s.tx.Commit(ctx)
	s.tx = nil
	return err
}

func (s *session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return fmt.Errorf("no transaction begun")
	}
	err := s.tx.Rollback(ctx)
	s.tx = nil
	return err
}

func (s *session) Close(ctx context.Context) error {
	if s.tx != nil {
		if err := s.tx.Rollback(ctx); err != nil {
			s.logger.Warn("rollback on close failed", zap.Error(err))
		}
		s.tx = nil
	}
	return s.inner.Close(ctx)
}

// namedParams rewrites positional ? placeholders into $p0..$pN and builds
// the matching parameter map.
func namedParams(text string, params []any) (string, map[string]any) {
	named := make(map[string]any, len(params))
	var b strings.Builder
	n := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '?' {
			b.WriteByte(text[i])
			continue
		}
		name := "p" + strconv.Itoa(n)
		if n < len(params) {
			named[name] = params[n]
		}
		b.WriteString("$" + name)
		n++
	}
	return b.String(), named
}

type record struct {
	rid     gorient.RID
	class   string
	version int
	props   map[string]any
}

func nodeRecord(node neo4j.Node) *record {
	props := make(map[string]any, len(node.Props))
	version := 0
	for k, v := range node.Props {
		if k == versionProp {
			if n, ok := v.(int64); ok {
				version = int(n)
			}
			continue
		}
		props[k] = v
	}
	class := ""
	if len(node.Labels) > 0 {
		class = node.Labels[0]
	}
	return &record{rid: gorient.RID(node.GetElementId()), class: class, version: version, props: props}
}

// rowRecord maps one result row: a single-node row becomes that node's
// record, anything else becomes a property bag keyed by the row's columns
// (which is how count(*) projections come back).
func rowRecord(row *neo4j.Record) gorient.Record {
	if len(row.Values) == 1 {
		if node, ok := row.Values[0].(neo4j.Node); ok {
			return nodeRecord(node)
		}
	}
	props := make(map[string]any, len(row.Keys))
	for i, key := range row.Keys {
		props[key] = row.Values[i]
	}
	return &record{props: props}
}

func (r *record) Identity() gorient.RID { return r.rid }
func (r *record) Version() int          { return r.version }

func (r *record) Get(name string) (any, bool) {
	v, ok := r.props[name]
	return v, ok
}

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
