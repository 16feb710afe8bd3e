// Package index persists the per-subdirectory recovery pointer for a binlog
// writer: the segment currently being written and the segment an external
// compactor has finished compressing.
package index

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
)

const fileName = "binlog_index.dat"

// ErrCorrupted is returned when binlog_index.dat exists but cannot be parsed.
var ErrCorrupted = fmt.Errorf("index: corrupted binlog_index.dat")

// Pointer is the persisted {current_write, current_compress} pair for one
// binlog subdirectory.
type Pointer struct {
	CurrentWrite   uint64
	CurrentCompress uint64
}

func path(dir string) string {
	return filepath.Join(dir, fileName)
}

// Load reads the index file for dir. A missing file is not an error: it
// means the subdirectory is fresh, and Load returns the zero Pointer without
// touching disk. Callers that want the fresh baseline persisted should call
// Store explicitly (writer.New does this).
func Load(dir string) (Pointer, error) {
	f, err := os.Open(path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return Pointer{}, nil
		}
		return Pointer{}, fmt.Errorf("index: open: %w", err)
	}
	defer f.Close()

	var p Pointer
	seen := map[string]bool{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return Pointer{}, ErrCorrupted
		}
		n, err := strconv.ParseUint(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return Pointer{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		switch strings.TrimSpace(key) {
		case "current_write":
			p.CurrentWrite = n
			seen["current_write"] = true
		case "current_compress":
			p.CurrentCompress = n
			seen["current_compress"] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return Pointer{}, fmt.Errorf("index: scan: %w", err)
	}
	if !seen["current_write"] || !seen["current_compress"] {
		return Pointer{}, ErrCorrupted
	}

	return p, nil
}

// Store persists p for dir atomically: the new content is written to a
// temporary file in the same directory and renamed into place, so a reader
// never observes a partially-written index file and a crash mid-write
// leaves the previous pointer intact.
func Store(dir string, p Pointer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("index: mkdir: %w", err)
	}

	content := fmt.Sprintf("current_write=%d\ncurrent_compress=%d\n", p.CurrentWrite, p.CurrentCompress)
	if err := atomic.WriteFile(path(dir), strings.NewReader(content)); err != nil {
		return fmt.Errorf("index: store: %w", err)
	}
	return nil
}
