package vectorstore

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
)

const (
	indexMagic   = "VIDX"
	indexVersion = uint32(1)
)

// Save writes the vectors and the records to their artifacts. Each artifact
// is written to a temp file in the same directory and renamed into place.
// The vector artifact is written first.
func (x *Index) Save() error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := writeAtomic(x.indexPath, func(w io.Writer) error {
		return encodeVectors(w, x.dim, x.vectors)
	}); err != nil {
		return fmt.Errorf("%w: write index: %v", ErrPersistence, err)
	}

	if err := writeAtomic(x.metaPath, func(w io.Writer) error {
		records := x.records
		if records == nil {
			records = []Record{}
		}
		return json.NewEncoder(w).Encode(records)
	}); err != nil {
		return fmt.Errorf("%w: write metadata: %v", ErrPersistence, err)
	}

	return nil
}

// Load replaces the in-memory state with the persisted artifacts. When
// neither artifact exists the index starts empty. When the two artifacts
// disagree on count, the aligned prefix is kept and a warning is logged.
func (x *Index) Load() error {
	dim, vectors, vecErr := readVectors(x.indexPath)
	records, metaErr := readRecords(x.metaPath)

	vecMissing := errors.Is(vecErr, os.ErrNotExist)
	metaMissing := errors.Is(metaErr, os.ErrNotExist)

	switch {
	case vecMissing && metaMissing:
		x.mu.Lock()
		x.dim, x.vectors, x.records = 0, nil, nil
		x.mu.Unlock()
		return nil
	case vecErr != nil && !vecMissing:
		return fmt.Errorf("%w: read index: %v", ErrPersistence, vecErr)
	case metaErr != nil && !metaMissing:
		return fmt.Errorf("%w: read metadata: %v", ErrPersistence, metaErr)
	}

	if len(vectors) != len(records) {
		n := min(len(vectors), len(records))
		slog.Warn("index artifacts disagree, keeping aligned prefix",
			"vectors", len(vectors), "records", len(records), "kept", n)
		vectors = vectors[:n]
		records = records[:n]
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.dim = dim
	x.vectors = vectors
	x.records = records
	return nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// encodeVectors writes: magic, version (u32), dim (u32), count (u64), then
// count*dim little-endian float32 values.
func encodeVectors(w io.Writer, dim int, vectors [][]float32) error {
	if _, err := io.WriteString(w, indexMagic); err != nil {
		return err
	}
	header := make([]byte, 16)
	binary.LittleEndian.PutUint32(header[0:4], indexVersion)
	binary.LittleEndian.PutUint32(header[4:8], uint32(dim))
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(vectors)))
	if _, err := w.Write(header); err != nil {
		return err
	}

	buf := make([]byte, 4*dim)
	for _, v := range vectors {
		for i, f := range v {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func decodeVectors(r io.Reader) (int, [][]float32, error) {
	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != indexMagic {
		return 0, nil, fmt.Errorf("bad magic %q", magic)
	}

	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}
	if v := binary.LittleEndian.Uint32(header[0:4]); v != indexVersion {
		return 0, nil, fmt.Errorf("unsupported index version %d", v)
	}
	dim := int(binary.LittleEndian.Uint32(header[4:8]))
	count := binary.LittleEndian.Uint64(header[8:16])
	if dim > MaxDimension {
		return 0, nil, fmt.Errorf("index dimension %d exceeds %d", dim, MaxDimension)
	}
	if count > 0 && dim == 0 {
		return 0, nil, fmt.Errorf("index has %d vectors but zero dimension", count)
	}

	vectors := make([][]float32, 0, min(count, 1<<16))
	buf := make([]byte, 4*dim)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				slog.Warn("index artifact truncated", "expected", count, "read", i)
				break
			}
			return 0, nil, err
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vectors = append(vectors, v)
	}
	return dim, vectors, nil
}

func readVectors(path string) (int, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return decodeVectors(bufio.NewReader(f))
}

func readRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	for i := range records {
		records[i].Score = nil
	}
	return records, nil
}
