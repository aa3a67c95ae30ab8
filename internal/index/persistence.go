package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/siri1404/NeuroRAG/internal/core"
)

// On-disk layout, little-endian:
//
//	magic     [4]byte  "NRVX"
//	version   uint32
//	metric    uint8    (0 = l2, 1 = cosine)
//	dimension uint32
//	count     uint64
//	entries   count * { id int64, values [dimension]float32,
//	                    nmeta uint16, nmeta * { klen uint16, key, vlen uint32, value } }
//
// Save writes only live entries, so a snapshot is implicitly compacted.

var indexMagic = [4]byte{'N', 'R', 'V', 'X'}

const formatVersion uint32 = 1

func metricTag(m core.DistanceMetric) uint8 {
	if m == core.MetricCosine {
		return 1
	}
	return 0
}

// Save serializes the index to path atomically (temp file + rename).
func Save(idx VectorIndex, path string) error {
	entries := idx.Entries()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create index snapshot: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	w := bufio.NewWriterSize(tmp, 1<<20)

	if _, err := w.Write(indexMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, metricTag(idx.Metric())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(idx.Dimension())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, e := range entries {
		if err := binary.Write(w, binary.LittleEndian, e.ID); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, e.Values); err != nil {
			return err
		}
		if err := writeMeta(w, e.Metadata); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a snapshot and builds an index with the given configuration.
// A file whose magic, format version, dimension or metric disagrees with the
// configuration is rejected with a fatal ErrCorruptIndex; startup must not
// proceed against it.
func Load(path string, cfg Config) (VectorIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	r := bufio.NewReaderSize(f, 1<<20)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, core.NewCorruptIndexError(path, "file too short for header")
	}
	if magic != indexMagic {
		return nil, core.NewCorruptIndexError(path, "bad magic")
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, core.NewCorruptIndexError(path, "truncated header")
	}
	if version != formatVersion {
		return nil, core.NewCorruptIndexError(path,
			fmt.Sprintf("format version %d, this build reads %d", version, formatVersion))
	}

	var metric uint8
	if err := binary.Read(r, binary.LittleEndian, &metric); err != nil {
		return nil, core.NewCorruptIndexError(path, "truncated header")
	}
	if metric != metricTag(cfg.Metric) {
		return nil, core.NewCorruptIndexError(path,
			fmt.Sprintf("metric tag %d does not match configured metric %q", metric, cfg.Metric))
	}

	var dim uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, core.NewCorruptIndexError(path, "truncated header")
	}
	if int(dim) != cfg.Dimension {
		return nil, core.NewCorruptIndexError(path,
			fmt.Sprintf("dimension %d does not match configured dimension %d", dim, cfg.Dimension))
	}

	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, core.NewCorruptIndexError(path, "truncated header")
	}

	idx, err := New(cfg)
	if err != nil {
		return nil, err
	}

	const batchSize = 1024
	batch := make([]core.VectorEntry, 0, batchSize)
	for i := uint64(0); i < count; i++ {
		var id int64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, core.NewCorruptIndexError(path, fmt.Sprintf("truncated at entry %d", i))
		}
		values := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, values); err != nil {
			return nil, core.NewCorruptIndexError(path, fmt.Sprintf("truncated at entry %d", i))
		}
		meta, err := readMeta(r)
		if err != nil {
			return nil, core.NewCorruptIndexError(path, fmt.Sprintf("bad metadata at entry %d", i))
		}

		batch = append(batch, core.VectorEntry{ID: id, Values: values, Metadata: meta})
		if len(batch) == batchSize {
			if err := idx.Insert(batch); err != nil {
				return nil, core.NewCorruptIndexError(path, err.Error())
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := idx.Insert(batch); err != nil {
			return nil, core.NewCorruptIndexError(path, err.Error())
		}
	}

	return idx, nil
}

func writeMeta(w io.Writer, meta map[string]string) error {
	if len(meta) > int(^uint16(0)) {
		return errors.New("metadata map too large")
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(meta))); err != nil {
		return err
	}
	for k, v := range meta {
		if err := binary.Write(w, binary.LittleEndian, uint16(len(k))); err != nil {
			return err
		}
		if _, err := w.Write([]byte(k)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(v))); err != nil {
			return err
		}
		if _, err := w.Write([]byte(v)); err != nil {
			return err
		}
	}
	return nil
}

func readMeta(r io.Reader) (map[string]string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	meta := make(map[string]string, n)
	for i := 0; i < int(n); i++ {
		var klen uint16
		if err := binary.Read(r, binary.LittleEndian, &klen); err != nil {
			return nil, err
		}
		key := make([]byte, klen)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, err
		}
		var vlen uint32
		if err := binary.Read(r, binary.LittleEndian, &vlen); err != nil {
			return nil, err
		}
		val := make([]byte, vlen)
		if _, err := io.ReadFull(r, val); err != nil {
			return nil, err
		}
		meta[string(key)] = string(val)
	}
	return meta, nil
}
