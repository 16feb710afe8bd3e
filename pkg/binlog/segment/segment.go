// Package segment implements one open, writable binlog segment file:
// ${dataRoot}/${subdir}/binlog.NNNNNN. A segment never truncates an
// existing file on open — a pre-existing file with the target name is
// renamed to a timestamped backup first, so crash recovery never loses a
// partial tail.
package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SuffixWidth is the zero-padded decimal width of the segment index in its
// file name. It must be wide enough that the lexicographic and numeric
// orderings of segment file names coincide.
const SuffixWidth = 6

// Segment is one open append-only binlog file plus its tracked size.
type Segment struct {
	path string
	file *os.File
	size int64
}

// Name returns the file name for a segment index, e.g. "binlog.000042".
func Name(index uint64) string {
	return fmt.Sprintf("binlog.%0*d", SuffixWidth, index)
}

// backupSuffix renders the local-time timestamp used for backup renames.
// Same-second collisions are handled by Open's counter suffix.
func backupSuffix(now time.Time) string {
	return now.Format("20060102150405")
}

// Open opens the segment at (dir, index) for appending, renaming any
// pre-existing file at that path out of the way first. It never truncates
// existing data.
func Open(dir string, index uint64) (*Segment, error) {
	p := filepath.Join(dir, Name(index))

	if _, err := os.Stat(p); err == nil {
		backup := fmt.Sprintf("%s.%s", p, backupSuffix(time.Now()))
		// Guard against a same-second backup name collision by appending a
		// counter rather than silently overwriting a previous backup.
		for n := 0; ; n++ {
			candidate := backup
			if n > 0 {
				candidate = fmt.Sprintf("%s.%d", backup, n)
			}
			if _, err := os.Stat(candidate); os.IsNotExist(err) {
				backup = candidate
				break
			}
		}
		if err := os.Rename(p, backup); err != nil {
			return nil, fmt.Errorf("segment: backup rename: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("segment: stat: %w", err)
	}

	return openFresh(p)
}

func openFresh(p string) (*Segment, error) {
	f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("segment: open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("segment: stat: %w", err)
	}
	return &Segment{path: p, file: f, size: info.Size()}, nil
}

// Path returns the absolute path of the segment file.
func (s *Segment) Path() string { return s.path }

// Size returns the current size of the segment in bytes.
func (s *Segment) Size() int64 { return s.size }

// Write appends buf to the segment and fsyncs it. A short write, a write
// error, or an fsync error are all treated as fatal by the caller (see
// writer.Info), since they imply a gap in the durable record stream.
func (s *Segment) Write(buf []byte) error {
	n, err := s.file.Write(buf)
	if err != nil {
		return fmt.Errorf("segment: write: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("segment: short write: wrote %d of %d bytes", n, len(buf))
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("segment: fsync: %w", err)
	}
	s.size += int64(n)
	return nil
}

// Close closes the underlying file descriptor.
func (s *Segment) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
