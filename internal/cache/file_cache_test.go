package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type dashboardPayload struct {
	Title  string           `json:"title"`
	Counts map[string]int64 `json:"counts"`
	Tags   []string         `json:"tags"`
	Nested []map[string]any `json:"nested"`
}

func newTestCache(t *testing.T, defaultTTL int) *FileCache {
	t.Helper()
	c, err := New(Options{Directory: t.TempDir(), DefaultTTLSeconds: defaultTTL})
	require.NoError(t, err)
	return c
}

// freezeNow pins the package clock and returns a function advancing it.
func freezeNow(t *testing.T) func(time.Duration) {
	t.Helper()
	base := time.Now()
	now = func() time.Time { return base }
	t.Cleanup(func() { now = time.Now })
	return func(d time.Duration) { base = base.Add(d) }
}

func TestNew_CreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "cache")
	c, err := New(Options{Directory: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.Equal(t, DefaultTTLSeconds*time.Second, c.DefaultTTL())
}

func TestNew_FailsWhenDirectoryCannotBeCreated(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	_, err := New(Options{Directory: filepath.Join(blocker, "cache")})
	require.Error(t, err)

	_, err = New(Options{Directory: "  "})
	require.ErrorIs(t, err, ErrEmptyDirectory)
}

func TestFileCache_RoundTrip(t *testing.T) {
	c := newTestCache(t, 0)
	in := dashboardPayload{
		Title:  "Kleine Anfrage",
		Counts: map[string]int64{"CDU/CSU": 551, "big": 1 << 53},
		Tags:   []string{"NGO", "Zivilgesellschaft"},
		Nested: []map[string]any{{"a": "b"}, {"c": true}},
	}

	require.True(t, c.Set("dashboard", in, time.Minute))

	var out dashboardPayload
	require.True(t, c.Get("dashboard", &out))
	require.Equal(t, in, out)
	require.True(t, c.Has("dashboard"))

	got, ok := Fetch[dashboardPayload](c, "dashboard")
	require.True(t, ok)
	require.Equal(t, in, got)
}

func TestFileCache_UntypedNumbersKeepPrecision(t *testing.T) {
	c := newTestCache(t, 0)
	const big = int64(1<<53 + 1)
	require.True(t, c.Set("k", map[string]any{"n": big, "f": 1.5}, time.Minute))

	var out any
	require.True(t, c.Get("k", &out))
	m, ok := out.(map[string]any)
	require.True(t, ok)
	n, ok := m["n"].(json.Number)
	require.True(t, ok)
	got, err := n.Int64()
	require.NoError(t, err)
	require.Equal(t, big, got)
	require.Equal(t, json.Number("1.5"), m["f"])

	var typed map[string]int64
	require.False(t, c.Get("k", &typed), "1.5 does not fit int64")

	require.True(t, c.Set("typed", map[string]int64{"n": big}, time.Minute))
	require.True(t, c.Get("typed", &typed))
	require.Equal(t, big, typed["n"])
}

func TestFileCache_SetOverwrites(t *testing.T) {
	c := newTestCache(t, 0)
	require.True(t, c.Set("k", "first", time.Minute))
	require.True(t, c.Set("k", "second", time.Minute))

	v, ok := Fetch[string](c, "k")
	require.True(t, ok)
	require.Equal(t, "second", v)
	require.Equal(t, 1, c.Stats().TotalFiles)
}

func TestFileCache_LongAndOddKeys(t *testing.T) {
	c := newTestCache(t, 0)
	keys := []string{
		"",
		"../../etc/passwd",
		"dip:vorgang:12345?f.titel=NGO&cursor=AoJ/",
		string(make([]byte, 4096)),
	}
	for i, k := range keys {
		require.True(t, c.Set(k, i, time.Minute))
	}
	for i, k := range keys {
		v, ok := Fetch[int](c, k)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.Equal(t, len(keys), c.Stats().TotalFiles)
}

func TestFileCache_Expiry(t *testing.T) {
	advance := freezeNow(t)
	c := newTestCache(t, 0)

	require.True(t, c.Set("k", "v", time.Second))
	require.True(t, c.Has("k"))

	advance(1100 * time.Millisecond)

	_, ok := Fetch[string](c, "k")
	require.False(t, ok)
	require.False(t, c.Has("k"))

	_, err := os.Stat(c.pathFor("k"))
	require.True(t, errors.Is(err, os.ErrNotExist), "expired entry file should be removed")
}

func TestFileCache_DefaultTTL(t *testing.T) {
	advance := freezeNow(t)
	c := newTestCache(t, 1)

	require.True(t, c.Set("k", 42, 0))
	require.True(t, c.Has("k"))

	advance(1500 * time.Millisecond)
	require.False(t, c.Has("k"))
}

func TestFileCache_CorruptEntryIsMiss(t *testing.T) {
	c := newTestCache(t, 0)
	require.True(t, c.Set("k", "v", time.Minute))

	cases := map[string][]byte{
		"garbage":         []byte("\x00\x01not json at all"),
		"truncated":       []byte(`{"expires_at": 99999999999, "payload": {"a":`),
		"missing payload": []byte(`{"expires_at": 99999999999}`),
		"missing expiry":  []byte(`{"payload": "v"}`),
		"wrong shape":     []byte(`[1,2,3]`),
		"empty":           {},
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(c.pathFor("k"), content, 0600))
			var out string
			require.False(t, c.Get("k", &out))
			require.False(t, c.Has("k"))
		})
	}
}

func TestFileCache_DestinationTypeMismatchIsMiss(t *testing.T) {
	c := newTestCache(t, 0)
	require.True(t, c.Set("k", "not a number", time.Minute))

	_, ok := Fetch[int](c, "k")
	require.False(t, ok)
}

func TestFileCache_UnserializableValue(t *testing.T) {
	c := newTestCache(t, 0)
	require.False(t, c.Set("k", make(chan int), time.Minute))
	require.False(t, c.Has("k"))
}

func TestFileCache_SetFailsOnReadOnlyDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	c := newTestCache(t, 0)
	require.NoError(t, os.Chmod(c.Directory(), 0500))
	t.Cleanup(func() { _ = os.Chmod(c.Directory(), 0750) })

	require.False(t, c.Set("k", "v", time.Minute))
}

func TestFileCache_DeleteIdempotent(t *testing.T) {
	c := newTestCache(t, 0)
	require.True(t, c.Delete("missing"))
	require.True(t, c.Delete("missing"))

	require.True(t, c.Set("k", "v", time.Minute))
	require.True(t, c.Delete("k"))
	require.False(t, c.Has("k"))
	require.True(t, c.Delete("k"))
}

func TestFileCache_Clear(t *testing.T) {
	c := newTestCache(t, 0)
	for _, k := range []string{"a", "b", "c"} {
		require.True(t, c.Set(k, k, time.Minute))
	}
	// Foreign files in the directory are left alone.
	require.NoError(t, os.WriteFile(filepath.Join(c.Directory(), "README"), []byte("x"), 0600))

	require.Equal(t, 3, c.Clear())
	for _, k := range []string{"a", "b", "c"} {
		require.False(t, c.Has(k))
	}
	require.Equal(t, 0, c.Clear())

	_, err := os.Stat(filepath.Join(c.Directory(), "README"))
	require.NoError(t, err)
}

func TestFileCache_ClearOlderThan_UsesModTime(t *testing.T) {
	c := newTestCache(t, 0)

	require.True(t, c.Set("old", "still valid", time.Hour))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(c.pathFor("old"), old, old))

	// Logically expired but freshly written.
	require.True(t, c.Set("fresh", "expired", time.Nanosecond))

	require.Equal(t, 1, c.ClearOlderThan(time.Hour))

	_, err := os.Stat(c.pathFor("old"))
	require.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(c.pathFor("fresh"))
	require.NoError(t, err, "fresh file survives an age-based clear even though it is expired")
}

func TestFileCache_Stats(t *testing.T) {
	advance := freezeNow(t)
	c := newTestCache(t, 0)

	require.True(t, c.Set("valid", "v", time.Hour))
	require.True(t, c.Set("expiring", "v", time.Second))
	require.True(t, c.Set("corrupt", "v", time.Hour))
	require.NoError(t, os.WriteFile(c.pathFor("corrupt"), []byte("{broken"), 0600))

	advance(2 * time.Second)

	stats := c.Stats()
	require.Equal(t, 3, stats.TotalFiles)
	require.Equal(t, 1, stats.ValidItems)
	require.Equal(t, 1, stats.ExpiredItems)
	require.Positive(t, stats.TotalSizeBytes)
}

func TestRemember_ProducesOnceAndCaches(t *testing.T) {
	c := newTestCache(t, 0)
	calls := 0
	produce := func() ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	v, err := Remember(c, "k", time.Minute, produce)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, v)

	v, err = Remember(c, "k", time.Minute, produce)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, v)
	require.Equal(t, 1, calls)

	got, ok := Fetch[[]string](c, "k")
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, got)
}

func TestRemember_ProducerErrorNotCached(t *testing.T) {
	c := newTestCache(t, 0)
	boom := errors.New("upstream unavailable")

	_, err := Remember(c, "k", time.Minute, func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	require.False(t, c.Has("k"))

	v, err := Remember(c, "k", time.Minute, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestRemember_RecomputesAfterExpiry(t *testing.T) {
	advance := freezeNow(t)
	c := newTestCache(t, 0)
	calls := 0
	produce := func() (int, error) {
		calls++
		return calls, nil
	}

	v, _ := Remember(c, "k", time.Second, produce)
	require.Equal(t, 1, v)
	advance(2 * time.Second)
	v, _ = Remember(c, "k", time.Second, produce)
	require.Equal(t, 2, v)
}

func TestFileCache_ConcurrentWritersSameKey(t *testing.T) {
	c := newTestCache(t, 0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < 20; r++ {
				c.Set("shared", dashboardPayload{Title: "writer", Counts: map[string]int64{"i": int64(i)}}, time.Minute)
				var out dashboardPayload
				if c.Get("shared", &out) && out.Title != "writer" {
					t.Errorf("observed partial entry: %+v", out)
				}
			}
		}()
	}
	wg.Wait()

	require.True(t, c.Has("shared"))
	require.Equal(t, 1, c.Stats().TotalFiles)
}
