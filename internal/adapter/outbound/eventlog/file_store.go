// Package eventlog persists the security event stream as JSON Lines files
// with daily rotation, size caps, retention cleanup, and an in-memory ring
// of recent events for queries.
package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/event"
)

// logFilePattern matches event log filenames: events-YYYY-MM-DD.log or
// events-YYYY-MM-DD-N.log
var logFilePattern = regexp.MustCompile(`^events-(\d{4}-\d{2}-\d{2})(?:-(\d+))?\.log$`)

// logFileInfo holds parsed information about an event log file.
type logFileInfo struct {
	name   string
	date   string
	suffix int
}

// parseLogFilename parses an event log filename into its components.
func parseLogFilename(name string) (logFileInfo, bool) {
	matches := logFilePattern.FindStringSubmatch(name)
	if matches == nil {
		return logFileInfo{}, false
	}

	info := logFileInfo{name: name, date: matches[1]}
	if matches[2] != "" {
		n, err := strconv.Atoi(matches[2])
		if err != nil {
			return logFileInfo{}, false
		}
		info.suffix = n
	}
	return info, true
}

// sortLogFiles sorts file info by date then suffix (chronological order).
func sortLogFiles(files []logFileInfo) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].date != files[j].date {
			return files[i].date < files[j].date
		}
		return files[i].suffix < files[j].suffix
	})
}

// FileConfig holds configuration for the file-based event store.
type FileConfig struct {
	// Dir is the directory where event log files are stored.
	Dir string
	// RetentionDays is the number of days to keep log files (default 7).
	RetentionDays int
	// MaxFileSizeMB is the maximum file size in megabytes before rotation (default 100).
	MaxFileSizeMB int
	// CacheSize is the number of recent events kept in memory for queries (default 1000).
	CacheSize int
}

// FileStore implements event.Sink and event.Reader with file rotation,
// retention, and a query cache.
type FileStore struct {
	dir           string
	maxFileSize   int64
	retentionDays int
	currentFile   *os.File
	currentDate   string
	currentSize   int64
	currentSuffix int
	cache         *recentRing
	mu            sync.Mutex
	logger        *slog.Logger
	cancel        context.CancelFunc
	closed        bool
}

// NewFileStore creates a file-based event store. It creates the directory
// if needed, opens today's log file, runs retention cleanup, warms the
// query cache from the most recent file, and starts the hourly cleanup
// goroutine.
func NewFileStore(cfg FileConfig, logger *slog.Logger) (*FileStore, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 100
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &FileStore{
		dir:           cfg.Dir,
		maxFileSize:   int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		retentionDays: cfg.RetentionDays,
		cache:         newRecentRing(cfg.CacheSize),
		logger:        logger,
		cancel:        cancel,
	}

	today := time.Now().UTC().Format("2006-01-02")
	if err := s.openCurrentFile(today); err != nil {
		cancel()
		return nil, fmt.Errorf("open event log file: %w", err)
	}

	s.runCleanup()
	s.warmCache()

	go s.cleanupLoop(ctx)

	return s, nil
}

// Append writes event records as JSON Lines to the current log file,
// rotating by date and size as needed.
func (s *FileStore) Append(ctx context.Context, records ...event.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		dateStr := rec.Timestamp.UTC().Format("2006-01-02")

		if dateStr != s.currentDate {
			if err := s.rotateDateLocked(dateStr); err != nil {
				return fmt.Errorf("date rotation: %w", err)
			}
		}
		if s.currentSize >= s.maxFileSize {
			if err := s.rotateSizeLocked(); err != nil {
				return fmt.Errorf("size rotation: %w", err)
			}
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal event record: %w", err)
		}

		line := append(data, '\n')
		n, err := s.currentFile.Write(line)
		if err != nil {
			return fmt.Errorf("write event record: %w", err)
		}
		s.currentSize += int64(n)

		s.cache.Add(rec)
	}

	return nil
}

// Flush forces pending records to disk by syncing the current file.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentFile != nil {
		return s.currentFile.Sync()
	}
	return nil
}

// Close stops the cleanup goroutine and closes the current file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.cancel()

	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		err := s.currentFile.Close()
		s.currentFile = nil
		return err
	}
	return nil
}

// Query returns cached events matching the filter, newest first. The cache
// covers the most recent CacheSize events; older events live only in the
// rotated files.
func (s *FileStore) Query(_ context.Context, filter event.Filter) ([]event.Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	out := make([]event.Record, 0, limit)
	s.cache.Scan(func(rec event.Record) bool {
		if !matchesFilter(&rec, &filter) {
			return true
		}
		out = append(out, rec)
		return len(out) < limit
	})
	return out, nil
}

// matchesFilter reports whether a record satisfies every set filter field.
func matchesFilter(rec *event.Record, f *event.Filter) bool {
	if !f.StartTime.IsZero() && rec.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && rec.Timestamp.After(f.EndTime) {
		return false
	}
	if f.SessionID != "" && rec.SessionID != f.SessionID {
		return false
	}
	if f.UserID != "" && rec.UserID != f.UserID {
		return false
	}
	if f.Type != "" && rec.Type != f.Type {
		return false
	}
	if f.Severity != "" && rec.Severity != f.Severity {
		return false
	}
	return true
}

// openCurrentFile opens or creates the log file for the given date,
// resuming the highest existing suffix.
func (s *FileStore) openCurrentFile(dateStr string) error {
	suffix := s.findHighestSuffix(dateStr)

	f, size, err := s.openFile(dateStr, suffix)
	if err != nil {
		return err
	}

	s.currentFile = f
	s.currentDate = dateStr
	s.currentSize = size
	s.currentSuffix = suffix
	return nil
}

// findHighestSuffix returns the highest existing suffix for a date, or 0.
func (s *FileStore) findHighestSuffix(dateStr string) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}

	highest := 0
	for _, e := range entries {
		info, ok := parseLogFilename(e.Name())
		if !ok || info.date != dateStr {
			continue
		}
		if info.suffix > highest {
			highest = info.suffix
		}
	}
	return highest
}

// openFile opens a log file, returning the handle and its current size.
func (s *FileStore) openFile(dateStr string, suffix int) (*os.File, int64, error) {
	filename := s.buildFilename(dateStr, suffix)
	path := filepath.Join(s.dir, filename)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, 0, fmt.Errorf("open file %s: %w", filename, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat file %s: %w", filename, err)
	}
	return f, info.Size(), nil
}

func (s *FileStore) buildFilename(dateStr string, suffix int) string {
	if suffix == 0 {
		return fmt.Sprintf("events-%s.log", dateStr)
	}
	return fmt.Sprintf("events-%s-%d.log", dateStr, suffix)
}

// rotateDateLocked closes the current file and opens one for the new date.
// Must be called with s.mu held.
func (s *FileStore) rotateDateLocked(dateStr string) error {
	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		_ = s.currentFile.Close()
		s.currentFile = nil
	}

	s.currentSuffix = 0
	s.currentSize = 0
	s.currentDate = dateStr

	f, size, err := s.openFile(dateStr, 0)
	if err != nil {
		return err
	}
	s.currentFile = f
	s.currentSize = size
	return nil
}

// rotateSizeLocked closes the current file and opens the next suffix.
// Must be called with s.mu held.
func (s *FileStore) rotateSizeLocked() error {
	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		_ = s.currentFile.Close()
		s.currentFile = nil
	}

	s.currentSuffix++
	s.currentSize = 0

	f, size, err := s.openFile(s.currentDate, s.currentSuffix)
	if err != nil {
		return err
	}
	s.currentFile = f
	s.currentSize = size
	return nil
}

// runCleanup deletes log files older than the retention period.
func (s *FileStore) runCleanup() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("event log cleanup: failed to read directory", "dir", s.dir, "error", err)
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted := 0

	for _, e := range entries {
		info, ok := parseLogFilename(e.Name())
		if !ok {
			continue
		}

		fileDate, err := time.Parse("2006-01-02", info.date)
		if err != nil {
			continue
		}

		if fileDate.Before(cutoff) {
			path := filepath.Join(s.dir, e.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Error("event log cleanup: failed to delete file",
					"file", e.Name(), "error", err)
			} else {
				deleted++
			}
		}
	}

	if deleted > 0 {
		s.logger.Info("event log cleanup completed", "deleted", deleted)
	}
}

// cleanupLoop runs retention cleanup every hour until the context is cancelled.
func (s *FileStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// warmCache reads the most recent log file and fills the query cache.
func (s *FileStore) warmCache() {
	mostRecent := s.findMostRecentFile()
	if mostRecent == "" {
		return
	}

	path := filepath.Join(s.dir, mostRecent)
	f, err := os.Open(path)
	if err != nil {
		s.logger.Error("event cache: failed to open file", "file", mostRecent, "error", err)
		return
	}
	defer func() { _ = f.Close() }()

	var records []event.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var rec event.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			s.logger.Warn("event cache: skipping malformed line", "file", mostRecent, "error", err)
			continue
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("event cache: error reading file", "file", mostRecent, "error", err)
	}

	start := 0
	if len(records) > s.cache.size {
		start = len(records) - s.cache.size
	}
	// Chronological order so the newest ends up most recent in the ring.
	for _, rec := range records[start:] {
		s.cache.Add(rec)
	}
}

// findMostRecentFile returns the most recent non-empty log file, or "".
func (s *FileStore) findMostRecentFile() string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return ""
	}

	var files []logFileInfo
	for _, e := range entries {
		info, ok := parseLogFilename(e.Name())
		if !ok {
			continue
		}
		finfo, err := e.Info()
		if err != nil || finfo.Size() == 0 {
			continue
		}
		files = append(files, info)
	}

	if len(files) == 0 {
		return ""
	}

	sortLogFiles(files)
	return files[len(files)-1].name
}

// Compile-time interface verification.
var (
	_ event.Sink   = (*FileStore)(nil)
	_ event.Reader = (*FileStore)(nil)
)

// recentRing is a ring buffer of recent events backing Query.
type recentRing struct {
	entries []event.Record
	size    int
	head    int
	count   int
	mu      sync.RWMutex
}

func newRecentRing(size int) *recentRing {
	if size <= 0 {
		size = 1000
	}
	return &recentRing{
		entries: make([]event.Record, size),
		size:    size,
	}
}

// Add appends a record, overwriting the oldest entry when full.
func (c *recentRing) Add(rec event.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.head] = rec
	c.head = (c.head + 1) % c.size
	if c.count < c.size {
		c.count++
	}
}

// Scan visits entries newest first until fn returns false.
func (c *recentRing) Scan(fn func(event.Record) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := 0; i < c.count; i++ {
		// head points at the next write slot, so head-1 is newest.
		idx := (c.head - 1 - i + c.size) % c.size
		if !fn(c.entries[idx]) {
			return
		}
	}
}

// Len returns the number of cached entries.
func (c *recentRing) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}
