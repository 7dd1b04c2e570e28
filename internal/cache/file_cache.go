package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultTTLSeconds is the lifetime applied when neither the caller nor
	// the configuration names one (15 minutes).
	DefaultTTLSeconds = 900

	// entryExtension marks entry files; anything else in the directory is
	// ignored by Clear and Stats.
	entryExtension = ".cache"

	// tempPattern names in-flight writes before they are renamed into place.
	tempPattern = "entry-*.tmp"
)

// ErrEmptyDirectory is returned by New when no storage directory is given.
var ErrEmptyDirectory = errors.New("cache directory cannot be empty")

// Options controls construction of a FileCache.
type Options struct {
	// Directory is where entry files live. It is created, with parents, if
	// it does not exist.
	Directory string

	// DefaultTTLSeconds applies when Set is called without a TTL.
	// Values <= 0 fall back to DefaultTTLSeconds.
	DefaultTTLSeconds int

	// Logger receives debug output about misses and write failures.
	// A nil Logger discards it.
	Logger *logrus.Logger
}

// FileCache stores each entry as a JSON file named after the SHA-256 digest
// of its key. It is safe for concurrent use; several processes may share the
// same directory.
type FileCache struct {
	directory  string
	defaultTTL time.Duration
	log        *logrus.Entry

	// mu serializes writes and removals within this process. Readers never
	// take it: a rename is atomic, so they see either the old or new file.
	mu sync.Mutex
}

// New creates a FileCache rooted at opts.Directory. It fails when the
// directory cannot be created.
func New(opts Options) (*FileCache, error) {
	if strings.TrimSpace(opts.Directory) == "" {
		return nil, ErrEmptyDirectory
	}

	if err := os.MkdirAll(opts.Directory, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	ttl := opts.DefaultTTLSeconds
	if ttl <= 0 {
		ttl = DefaultTTLSeconds
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &FileCache{
		directory:  opts.Directory,
		defaultTTL: time.Duration(ttl) * time.Second,
		log:        logger.WithField("component", "cache"),
	}, nil
}

// Directory returns the storage directory.
func (c *FileCache) Directory() string {
	return c.directory
}

// DefaultTTL returns the TTL applied when Set is called without one.
func (c *FileCache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get implements Store.Get. The payload is decoded with encoding/json, so dst
// should be a pointer to a type the payload was encoded from. Numbers landing
// in untyped (any) values decode as json.Number to keep integer precision.
func (c *FileCache) Get(key string, dst any) bool {
	rec, out := c.lookup(key)
	if out != outcomeHit {
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(rec.Payload))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		c.log.WithFields(logrus.Fields{"key": key, "error": err}).Debug("cache payload does not decode into destination")
		return false
	}
	return true
}

// Has implements Store.Has.
func (c *FileCache) Has(key string) bool {
	_, out := c.lookup(key)
	return out == outcomeHit
}

// Set implements Store.Set. The entry file is written to a temporary name
// and renamed into place, replacing any previous entry.
func (c *FileCache) Set(key string, value any, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("cache payload is not serializable")
		return false
	}
	data, err := json.Marshal(newRecord(key, payload, ttl))
	if err != nil {
		c.log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("failed to marshal cache entry")
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeFile(c.pathFor(key), data); err != nil {
		c.log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("failed to write cache entry")
		return false
	}
	return true
}

// Delete implements Store.Delete.
func (c *FileCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.pathFor(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("failed to delete cache entry")
		return false
	}
	return true
}

// Clear implements Store.Clear.
func (c *FileCache) Clear() int {
	return c.removeWhere(func(fs.FileInfo) bool { return true })
}

// ClearOlderThan implements Store.ClearOlderThan. Age is measured from the
// file's modification time, not from the entry's expiry: a recently written
// entry with a short TTL survives even when it is logically expired, and an
// old entry with a long TTL is removed even when still valid.
func (c *FileCache) ClearOlderThan(age time.Duration) int {
	cutoff := now().Add(-age)
	return c.removeWhere(func(info fs.FileInfo) bool {
		return info.ModTime().Before(cutoff)
	})
}

// Stats implements Store.Stats. Files that fail to parse count toward
// TotalFiles only.
func (c *FileCache) Stats() Stats {
	var stats Stats
	for _, info := range c.entryFiles() {
		stats.TotalFiles++
		stats.TotalSizeBytes += info.Size()

		data, err := os.ReadFile(filepath.Join(c.directory, info.Name()))
		if err != nil {
			continue
		}
		rec, ok := decodeRecord(data)
		if !ok {
			continue
		}
		if rec.expired() {
			stats.ExpiredItems++
		} else {
			stats.ValidItems++
		}
	}
	return stats
}

// lookup reads the entry for key and classifies the result. Expired entries
// are removed on the way out; a failed removal is ignored.
func (c *FileCache) lookup(key string) (record, outcome) {
	path := c.pathFor(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return record{}, outcomeMissing
		}
		c.log.WithFields(logrus.Fields{"key": key, "error": err}).Debug("cache entry unreadable")
		return record{}, outcomeUnreadable
	}

	rec, ok := decodeRecord(data)
	if !ok {
		c.log.WithField("key", key).Debug("cache entry corrupt")
		return record{}, outcomeCorrupt
	}

	if rec.expired() {
		c.log.WithFields(logrus.Fields{"key": key, "expired_at": rec.expiresAtTime()}).Debug("cache entry expired")
		c.removeIfExpired(path)
		return record{}, outcomeExpired
	}

	return rec, outcomeHit
}

// removeIfExpired deletes path unless a writer replaced it with a live entry
// since it was read.
func (c *FileCache) removeIfExpired(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if rec, ok := decodeRecord(data); ok && !rec.expired() {
		return
	}
	_ = os.Remove(path)
}

func (c *FileCache) writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(c.directory, tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// removeWhere deletes every entry file for which match returns true and
// returns how many were actually removed.
func (c *FileCache) removeWhere(match func(fs.FileInfo) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, info := range c.entryFiles() {
		if !match(info) {
			continue
		}
		if err := os.Remove(filepath.Join(c.directory, info.Name())); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				c.log.WithFields(logrus.Fields{"file": info.Name(), "error": err}).Warn("failed to remove cache file")
			}
			continue
		}
		removed++
	}
	return removed
}

// entryFiles lists the regular entry files in the storage directory.
func (c *FileCache) entryFiles() []fs.FileInfo {
	dirEntries, err := os.ReadDir(c.directory)
	if err != nil {
		c.log.WithError(err).Warn("failed to read cache directory")
		return nil
	}

	files := make([]fs.FileInfo, 0, len(dirEntries))
	for _, d := range dirEntries {
		if !d.Type().IsRegular() || filepath.Ext(d.Name()) != entryExtension {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	return files
}

// pathFor maps a key to its entry file.
func (c *FileCache) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.directory, hex.EncodeToString(sum[:])+entryExtension)
}
