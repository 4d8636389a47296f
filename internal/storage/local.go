package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rvallee/meteo-collector/internal/collect"
)

const (
	filePrefix = "weather_data_"
	latestFile = "latest_data.json"
)

// LocalSink writes one immutable timestamped JSON file per run plus an
// overwritten latest pointer file. It is the mandatory sink: the run has no
// durable record without it.
type LocalSink struct {
	dir string

	// serializes writers to the latest file within this process
	mu sync.Mutex
}

func NewLocalSink(dir string) *LocalSink {
	if dir == "" {
		dir = "data"
	}
	return &LocalSink{dir: dir}
}

func (s *LocalSink) Name() string {
	return "local_json"
}

func (s *LocalSink) Dir() string {
	return s.dir
}

// Save writes the per-run file and the latest pointer. Both writes are
// temp-then-rename so a concurrent reader never sees a partial file.
func (s *LocalSink) Save(ctx context.Context, doc *collect.CollectionDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	data, err := encodeJSON(doc)
	if err != nil {
		return fmt.Errorf("encoding collection document: %w", err)
	}

	runFile := filepath.Join(s.dir, filePrefix+doc.FileStamp()+".json")
	if err := writeAtomic(runFile, data); err != nil {
		return fmt.Errorf("writing %s: %w", runFile, err)
	}

	if err := writeAtomic(filepath.Join(s.dir, latestFile), data); err != nil {
		return fmt.Errorf("writing latest pointer: %w", err)
	}

	log.Printf("INFO: collection document saved to %s", runFile)
	return nil
}

// GetLatest reads the latest pointer file. It returns nil without an error
// when no run has completed yet.
func (s *LocalSink) GetLatest() (*collect.CollectionDocument, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, latestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var doc collect.CollectionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding latest document: %w", err)
	}
	return &doc, nil
}

// LatestModTime reports when the latest pointer was last written. The zero
// time means no run has completed yet.
func (s *LocalSink) LatestModTime() time.Time {
	info, err := os.Stat(filepath.Join(s.dir, latestFile))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// CheckWritable probes that the data directory can be written to.
func (s *LocalSink) CheckWritable() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Cleanup removes timestamped run files older than maxAge. The latest
// pointer is never removed. It returns the number of files deleted.
func (s *LocalSink) Cleanup(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			log.Printf("WARN: could not remove %s: %v", name, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// encodeJSON pretty-prints with non-ASCII characters left unescaped, the
// format the mobile client reads.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
