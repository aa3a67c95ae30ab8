// Package ingest bulk-loads and exports vector corpora as Parquet files.
package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/siri1404/NeuroRAG/internal/core"
)

// VectorRow is the Parquet row layout for bulk vector exchange.
type VectorRow struct {
	ID       int64             `parquet:"id"`
	Vector   []float32         `parquet:"vector"`
	Metadata map[string]string `parquet:"metadata"`
}

const writeChunk = 4096

// WriteFile exports entries to a Zstd-compressed Parquet file at path.
func WriteFile(path string, entries []core.VectorEntry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	defer f.Close()

	pw := parquet.NewGenericWriter[VectorRow](f, parquet.Compression(&parquet.Zstd))

	rows := make([]VectorRow, 0, writeChunk)
	for i, e := range entries {
		rows = append(rows, VectorRow{ID: e.ID, Vector: e.Values, Metadata: e.Metadata})
		if len(rows) == writeChunk || i == len(entries)-1 {
			if _, err := pw.Write(rows); err != nil {
				return fmt.Errorf("write parquet rows: %w", err)
			}
			rows = rows[:0]
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("finalize parquet file: %w", err)
	}

	logger.Info("parquet export complete",
		zap.String("path", path), zap.Int("rows", len(entries)))
	return f.Sync()
}

// ReadFile loads every row of a Parquet vector file into memory.
func ReadFile(path string, logger *zap.Logger) ([]core.VectorEntry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse parquet file: %w", err)
	}

	pr := parquet.NewGenericReader[VectorRow](pf)
	defer pr.Close()

	entries := make([]core.VectorEntry, 0, pr.NumRows())
	buf := make([]VectorRow, writeChunk)
	for {
		n, err := pr.Read(buf)
		for _, row := range buf[:n] {
			entries = append(entries, core.VectorEntry{
				ID:       row.ID,
				Values:   row.Vector,
				Metadata: row.Metadata,
			})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}

	logger.Info("parquet import complete",
		zap.String("path", path), zap.Int("rows", len(entries)))
	return entries, nil
}
