package repository

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/sjfremen/fred/internal/domain/models"
	drepo "github.com/sjfremen/fred/internal/domain/repository"
	"github.com/sjfremen/fred/internal/service/cache"
	"github.com/sjfremen/fred/internal/service/metrics"
	applogger "github.com/sjfremen/fred/pkg/logger"
)

// TableLoader reads each table file once and hands out the same in-memory
// table for the same path afterwards.
type TableLoader struct {
	reader drepo.TableReader
	cache  *cache.TTLCache
	ttl    time.Duration
	mu     sync.Mutex
	l      *applogger.Logger
}

var _ drepo.TableReader = (*TableLoader)(nil)

// NewTableLoader wraps reader with a memo. A zero ttl keeps tables for the
// life of the process.
func NewTableLoader(reader drepo.TableReader, ttl time.Duration, l *applogger.Logger) *TableLoader {
	if l == nil {
		l = applogger.Nop()
	}
	metrics.Register()
	return &TableLoader{reader: reader, cache: cache.NewTTLCache(), ttl: ttl, l: l}
}

// Read returns the memoized table for path, loading it on first use.
func (t *TableLoader) Read(ctx context.Context, path string) (*models.Table, error) {
	key := filepath.Clean(path)
	if v, ok := t.cache.Get(key); ok {
		return v.(*models.Table), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.cache.Get(key); ok {
		return v.(*models.Table), nil
	}

	start := time.Now()
	tbl, err := t.reader.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	metrics.TableLoads.WithLabelValues(key).Inc()
	t.l.Info("table loaded",
		applogger.String("path", key),
		applogger.Int("rows", tbl.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	t.cache.Set(key, tbl, t.ttl)
	return tbl, nil
}

// Forget drops the memoized table for path.
func (t *TableLoader) Forget(path string) {
	t.cache.Delete(filepath.Clean(path))
}
