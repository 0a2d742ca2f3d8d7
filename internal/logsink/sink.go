package logsink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/gzip"

	"github.com/LzdqesjG/BungeeLog/internal/domain"
	"github.com/LzdqesjG/BungeeLog/internal/metrics"
)

const (
	filePrefix    = "bungee"
	fileExt       = ".log"
	rotationCheck = time.Minute
	dateLayout    = "2006-01-02"
)

// Options control file naming, rotation and retention.
type Options struct {
	Dir      string // log directory, created if missing
	Daily    bool   // one file per calendar day vs. a single fixed file
	MaxFiles int    // retention count, <= 0 disables pruning
	Compress bool   // gzip the closed file on daily rotation
}

// Sink owns the current audit log file handle. Appends and rotation are
// mutually exclusive on the handle; a failed open degrades the sink to a
// no-op until the next successful rotation.
type Sink struct {
	opts  Options
	clock clockwork.Clock

	mu      sync.Mutex
	file    *os.File
	day     string // calendar day the current file was opened for
	healthy bool
}

// New opens the initial log file. An open failure is reported but leaves the
// sink usable in degraded mode.
func New(opts Options, clock clockwork.Clock) (*Sink, error) {
	s := &Sink{opts: opts, clock: clock}
	if err := s.open(); err != nil {
		return s, fmt.Errorf("open initial log file: %w", err)
	}
	return s, nil
}

// Append writes one line, rotating first if the calendar day changed.
// Returns domain.ErrSinkUnavailable while the sink is degraded.
func (s *Sink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rotateIfNeededLocked(); err != nil {
		slog.Error("Log rotation failed", "error", err)
	}

	if !s.healthy || s.file == nil {
		return domain.ErrSinkUnavailable
	}

	if _, err := s.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append log line: %w", err)
	}
	metrics.LogLinesWritten.Inc()
	return nil
}

// Path returns the current log file path, or the degraded target path.
func (s *Sink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filepath.Join(s.opts.Dir, s.fileName(s.clock.Now()))
}

// Healthy reports whether the sink currently holds an open file handle.
func (s *Sink) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthy
}

// Reconfigure applies new rotation settings. The new naming takes effect on
// the next rotation check; the handle is reopened immediately if the target
// file name changed.
func (s *Sink) Reconfigure(opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.opts
	s.opts = opts
	if old.Dir != opts.Dir || old.Daily != opts.Daily {
		s.closeLocked()
		if err := s.openLocked(); err != nil {
			return fmt.Errorf("reopen log file: %w", err)
		}
	}
	return nil
}

// Run drives the periodic rotation check until ctx is cancelled.
func (s *Sink) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(rotationCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.mu.Lock()
			rotated, err := s.rotateIfNeededLocked()
			s.mu.Unlock()
			if err != nil {
				slog.Error("Scheduled log rotation failed", "error", err)
			} else if rotated {
				slog.Info("Log file rotated", "path", s.Path())
			}
		}
	}
}

// Close flushes and releases the current handle.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *Sink) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked()
}

// rotateIfNeededLocked opens a fresh file when daily rotation is enabled and
// the calendar day changed, or recovers a degraded sink. Compresses the
// closed file and prunes old ones after a successful open.
func (s *Sink) rotateIfNeededLocked() (bool, error) {
	today := s.clock.Now().Format(dateLayout)

	if s.healthy && (!s.opts.Daily || s.day == today) {
		return false, nil
	}

	closedPath := ""
	if s.file != nil {
		closedPath = s.file.Name()
	}
	s.closeLocked()

	if err := s.openLocked(); err != nil {
		return false, err
	}

	if s.opts.Compress && closedPath != "" && closedPath != filepath.Join(s.opts.Dir, s.fileName(s.clock.Now())) {
		if err := compressFile(closedPath); err != nil {
			// Best-effort housekeeping, keep the uncompressed original.
			slog.Warn("Failed to compress rotated log file", "path", closedPath, "error", err)
		}
	}

	metrics.LogRotations.Inc()
	return true, nil
}

func (s *Sink) openLocked() error {
	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		s.healthy = false
		return fmt.Errorf("create log directory: %w", err)
	}

	now := s.clock.Now()
	path := filepath.Join(s.opts.Dir, s.fileName(now))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.healthy = false
		return fmt.Errorf("open log file %s: %w", path, err)
	}

	s.file = file
	s.day = now.Format(dateLayout)
	s.healthy = true

	s.pruneLocked()
	return nil
}

func (s *Sink) closeLocked() {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	s.healthy = false
}

func (s *Sink) fileName(now time.Time) string {
	if s.opts.Daily {
		return filePrefix + "-" + now.Format(dateLayout) + fileExt
	}
	return filePrefix + fileExt
}

// pruneLocked deletes rotated files beyond the retention count, most recent
// (by modification time) kept. Failures are logged and swallowed.
func (s *Sink) pruneLocked() {
	if s.opts.MaxFiles <= 0 {
		return
	}

	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		slog.Warn("Failed to list log directory for pruning", "dir", s.opts.Dir, "error", err)
		return
	}

	type candidate struct {
		name    string
		modTime time.Time
	}
	var files []candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix+"-") {
			continue
		}
		if !strings.HasSuffix(name, fileExt) && !strings.HasSuffix(name, fileExt+".gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{name: name, modTime: info.ModTime()})
	}

	if len(files) <= s.opts.MaxFiles {
		return
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	for _, f := range files[s.opts.MaxFiles:] {
		path := filepath.Join(s.opts.Dir, f.name)
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to prune old log file", "path", path, "error", err)
			continue
		}
		metrics.LogFilesPruned.Inc()
		slog.Debug("Pruned old log file", "path", path)
	}
}

func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}
