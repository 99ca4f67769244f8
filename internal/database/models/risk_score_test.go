package models

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap/zaptest"
)

// selectConn answers every query with the columns of its SELECT DISTINCT
// list, the way PostgreSQL does, filled from a fixed set of rows keyed by
// column name.
type selectConn struct {
	mu      sync.Mutex
	queries []string
	rows    []map[string]string
}

func (c *selectConn) Connect(context.Context) (driver.Conn, error) { return c, nil }
func (c *selectConn) Driver() driver.Driver                       { return c }
func (c *selectConn) Open(string) (driver.Conn, error)            { return c, nil }
func (c *selectConn) Prepare(string) (driver.Stmt, error)         { return nil, errors.New("prepare not supported") }
func (c *selectConn) Close() error                                { return nil }
func (c *selectConn) Begin() (driver.Tx, error)                   { return nil, errors.New("tx not supported") }

func (c *selectConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	c.queries = append(c.queries, query)
	c.mu.Unlock()

	start := strings.Index(query, "SELECT DISTINCT ")
	end := strings.Index(query, " FROM ")
	if start < 0 || end < start {
		return nil, errors.New("unexpected query")
	}

	var columns []string
	for _, column := range strings.Split(query[start+len("SELECT DISTINCT "):end], ",") {
		columns = append(columns, strings.Trim(strings.TrimSpace(column), `"`))
	}
	return &selectRows{columns: columns, rows: c.rows}, nil
}

type selectRows struct {
	columns []string
	rows    []map[string]string
	next    int
}

func (r *selectRows) Columns() []string { return r.columns }
func (r *selectRows) Close() error      { return nil }

func (r *selectRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.next]
	r.next++
	for i, column := range r.columns {
		value, ok := row[column]
		if !ok {
			return errors.New("no value for column " + column)
		}
		dest[i] = value
	}
	return nil
}

func TestGetFlaggedPairsScansPairKeys(t *testing.T) {
	t.Parallel()

	conn := &selectConn{rows: []map[string]string{
		{"pair_id": "userA:userB", "user_id_a": "userA", "user_id_b": "userB"},
		{"pair_id": "userC:userD", "user_id_a": "userC", "user_id_b": "userD"},
	}}
	db := bun.NewDB(sql.OpenDB(conn), pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })

	model := NewRiskScore(db, zaptest.NewLogger(t))
	keys, err := model.GetFlaggedPairs(t.Context(), types.FlaggedPairFilter{
		MinCombinedScore: 70,
		IncludeProximity: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []types.PairKey{
		{UserIDA: "userA", UserIDB: "userB"},
		{UserIDA: "userC", UserIDB: "userD"},
	}, keys)

	require.Len(t, conn.queries, 1)
	assert.Contains(t, conn.queries[0], "SELECT DISTINCT user_id_a, user_id_b FROM")
	assert.Contains(t, conn.queries[0], "combined_risk_score >= ")
	assert.Contains(t, conn.queries[0], "event_count > 0")
	assert.NotContains(t, conn.queries[0], "pair_id")
}
