package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sjfremen/fred/internal/domain/models"
	drepo "github.com/sjfremen/fred/internal/domain/repository"
	applogger "github.com/sjfremen/fred/pkg/logger"
)

// DefaultChunkSize is the number of rows per multi-row INSERT.
const DefaultChunkSize = 2000

// IndicatorSchema returns the DDL for the long-format indicator table.
// Re-running a pipeline replaces rows through the version column.
func IndicatorSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.indicators (
			table_name String,
			date Date,
			column String,
			value Nullable(Float64),
			label String,
			version DateTime64(3)
		) ENGINE = ReplacingMergeTree(version) ORDER BY (table_name, column, date)`, database),
	}
}

// ClickHouseTableStore mirrors tables into ClickHouse, one row per cell.
type ClickHouseTableStore struct {
	db        *sql.DB
	table     string
	chunkSize int
	l         *applogger.Logger
	now       func() time.Time
}

var _ drepo.TableMirror = (*ClickHouseTableStore)(nil)

// NewClickHouseTableStore creates a mirror writing to <database>.indicators.
func NewClickHouseTableStore(db *sql.DB, database string, chunkSize int, l *applogger.Logger) *ClickHouseTableStore {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseTableStore{db: db, table: database + ".indicators", chunkSize: chunkSize, l: l, now: time.Now}
}

type cellRow struct {
	date   time.Time
	column string
	value  *float64
	label  string
}

// cells flattens t into long format; missing numbers become NULL.
func cells(t *models.Table) []cellRow {
	cols := t.Columns()
	out := make([]cellRow, 0, t.Len()*len(cols))
	for i, d := range t.Dates {
		for _, c := range cols {
			r := cellRow{date: d, column: c.Name}
			if c.Kind == models.LabelColumn {
				r.label = c.Labels[i]
			} else if v := c.Values[i]; !models.IsMissing(v) {
				r.value = &v
			}
			out = append(out, r)
		}
	}
	return out
}

func (s *ClickHouseTableStore) insertQuery(rows int) string {
	values := strings.TrimSuffix(strings.Repeat("(?, ?, ?, ?, ?, ?),", rows), ",")
	return fmt.Sprintf("INSERT INTO %s (table_name, date, column, value, label, version) VALUES %s", s.table, values)
}

// Mirror inserts every cell of t under name, in chunks.
func (s *ClickHouseTableStore) Mirror(ctx context.Context, name string, t *models.Table) error {
	rows := cells(t)
	version := s.now().UTC()
	for start := 0; start < len(rows); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		args := make([]interface{}, 0, (end-start)*6)
		for _, r := range rows[start:end] {
			var v interface{}
			if r.value != nil {
				v = *r.value
			}
			args = append(args, name, r.date, r.column, v, r.label, version)
		}
		if _, err := s.db.ExecContext(ctx, s.insertQuery(end-start), args...); err != nil {
			s.l.Error("clickhouse mirror insert error",
				applogger.String("table", name),
				applogger.Int("offset", start),
				applogger.Error(err),
			)
			return fmt.Errorf("clickhouse insert %s: %w", name, err)
		}
	}
	s.l.Info("clickhouse mirror done", applogger.String("table", name), applogger.Int("cells", len(rows)))
	return nil
}

// Close is a no-op; the pool is owned by pkg/clickhouse.Client.
func (s *ClickHouseTableStore) Close() error {
	return nil
}
