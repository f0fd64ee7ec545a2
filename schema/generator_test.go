package schema

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorient"
	"gorient/driver/memory"
	"gorient/mapping"
)

type invoice struct {
	ID       gorient.RID `gorient:",id"`
	Version  int         `gorient:",version"`
	Number   string
	Total    float64
	Items    int32
	Paid     bool
	IssuedAt time.Time
	Payload  []byte
	Tags     []string
	Note     *string
}

func TestGenerator_Statements(t *testing.T) {
	gen := NewGenerator(mapping.NewRegistry(nil), nil)

	stmts := gen.Statements(reflect.TypeOf(invoice{}))

	assert.Equal(t, []string{
		"CREATE CLASS invoice IF NOT EXISTS EXTENDS V",
		"CREATE PROPERTY invoice.number IF NOT EXISTS STRING",
		"CREATE PROPERTY invoice.total IF NOT EXISTS DOUBLE",
		"CREATE PROPERTY invoice.items IF NOT EXISTS INTEGER",
		"CREATE PROPERTY invoice.paid IF NOT EXISTS BOOLEAN",
		"CREATE PROPERTY invoice.issuedAt IF NOT EXISTS DATETIME",
		"CREATE PROPERTY invoice.payload IF NOT EXISTS BINARY",
		"CREATE PROPERTY invoice.note IF NOT EXISTS STRING",
	}, stmts)
}

func TestGenerator_Apply(t *testing.T) {
	registry := mapping.NewRegistry(nil)
	pool := memory.NewStore(nil).Pool()
	tmpl := gorient.NewTemplate(pool, registry, nil)
	gen := NewGenerator(registry, nil)

	err := gen.Apply(context.Background(), tmpl, reflect.TypeOf(invoice{}))

	require.NoError(t, err)
}
