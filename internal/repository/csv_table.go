package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sjfremen/fred/internal/domain/models"
	drepo "github.com/sjfremen/fred/internal/domain/repository"
)

// DateColumn is the header of the first CSV column.
const DateColumn = "date"

// LabelPrefix marks categorical columns that must never parse as numbers.
const LabelPrefix = "regime_"

var ErrBadHeader = errors.New("csv: first column must be date")

// CSVTable persists tables as UTF-8 CSV: a header row, the date first and
// one row per date in ascending order. Missing values are empty fields.
type CSVTable struct{}

var (
	_ drepo.TableWriter = (*CSVTable)(nil)
	_ drepo.TableReader = (*CSVTable)(nil)
)

func NewCSVTable() *CSVTable { return &CSVTable{} }

// Write replaces the file at path. The table is written to a temporary file
// in the same directory and renamed over the target, so readers never see
// a partial file.
func (s *CSVTable) Write(ctx context.Context, path string, t *models.Table) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = encode(tmp, t); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

func encode(w io.Writer, t *models.Table) error {
	cw := csv.NewWriter(w)
	cols := t.Columns()

	header := make([]string, 0, len(cols)+1)
	header = append(header, DateColumn)
	header = append(header, t.Names()...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(cols)+1)
	for i, d := range t.Dates {
		row[0] = d.Format(models.DateLayout)
		for j, c := range cols {
			row[j+1] = FormatCell(c, i)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatCell renders row i of c: the shortest exact decimal for numbers,
// the label for categories, and an empty string when missing.
func FormatCell(c *models.Column, i int) string {
	if c.Kind == models.LabelColumn {
		return c.Labels[i]
	}
	v := c.Values[i]
	if models.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Read loads a table written by Write. Columns whose every non-empty cell
// parses as a number are numeric; the rest, and all regime_ columns, are labels.
func (s *CSVTable) Read(ctx context.Context, path string) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

func decode(r io.Reader) (*models.Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if len(header) == 0 || strings.TrimPrefix(header[0], "\ufeff") != DateColumn {
		return nil, ErrBadHeader
	}
	names := header[1:]

	var dates []time.Time
	raw := make([][]string, len(names))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		d, err := time.Parse(models.DateLayout, rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(dates); n > 0 && !d.After(dates[n-1]) {
			return nil, fmt.Errorf("line %d: dates not ascending", line)
		}
		dates = append(dates, d)
		for j := range names {
			raw[j] = append(raw[j], rec[j+1])
		}
	}

	t := models.NewTable(dates)
	for j, name := range names {
		if values, ok := parseNumeric(name, raw[j]); ok {
			err = t.AddNumeric(name, values)
		} else {
			err = t.AddLabels(name, raw[j])
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parseNumeric(name string, cells []string) ([]float64, bool) {
	if strings.HasPrefix(name, LabelPrefix) {
		return nil, false
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		if c == "" {
			out[i] = models.Missing()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
