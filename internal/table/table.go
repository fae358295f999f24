// Package table reads and writes typed record slices as Parquet files.
package table

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// Read loads every row of the Parquet file at path.
// A missing file yields an error wrapping fs.ErrNotExist.
func Read[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}

	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// Write stores rows at path. The file is written next to its destination and
// renamed into place, so a failed write never leaves a partial table.
func Write[T any](path string, rows []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create table dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	w := parquet.NewGenericWriter[T](tmp, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp table: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename table: %w", err)
	}
	return nil
}

// Exists reports whether a table file is present at path
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
