package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ngo-inquiry-tracker/internal/auth"
	"ngo-inquiry-tracker/internal/cache"
	"ngo-inquiry-tracker/internal/dip"
)

// setupEnv points every command at a temporary cache and a fake DIP API.
func setupEnv(t *testing.T) string {
	t.Helper()
	work := t.TempDir()
	chdir(t, work)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(dip.VorgangPage{
			NumFound: 1,
			Documents: []dip.Vorgang{{
				ID:          "318734",
				Titel:       "Politische Neutralität staatlich geförderter Organisationen (NGOs)",
				Vorgangstyp: dip.TypeKleineAnfrage,
				Datum:       "2025-02-24",
				Initiative:  []string{"Fraktion der CDU/CSU"},
			}},
		})
	}))
	t.Cleanup(upstream.Close)

	cacheDir := filepath.Join(work, "cache")
	t.Setenv("CACHE_DIR", cacheDir)
	t.Setenv("DIP_BASE_URL", upstream.URL)
	t.Setenv("DIP_START_DATE", "2025-01-01")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("JWT_SECRET", "cli-test-secret-0123456789")
	return cacheDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFetch_PrintsAndCaches(t *testing.T) {
	cacheDir := setupEnv(t)

	out, err := run(t, "fetch")
	require.NoError(t, err)
	require.Contains(t, out, "1 inquiries in Wahlperiode 21")
	require.Contains(t, out, "318734")

	store, err := cache.New(cache.Options{Directory: cacheDir})
	require.NoError(t, err)
	require.Equal(t, 1, store.Stats().ValidItems)

	out, err = run(t, "fetch", "--json")
	require.NoError(t, err)
	var d struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	require.Equal(t, 1, d.Total)
}

func TestCacheStatsAndClear(t *testing.T) {
	cacheDir := setupEnv(t)
	store, err := cache.New(cache.Options{Directory: cacheDir})
	require.NoError(t, err)
	require.True(t, store.Set("a", 1, time.Hour))
	require.True(t, store.Set("b", 2, time.Hour))

	out, err := run(t, "cache", "stats", "--json")
	require.NoError(t, err)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Equal(t, 2, stats.TotalFiles)
	require.Equal(t, 2, stats.ValidItems)

	out, err = run(t, "cache", "stats")
	require.NoError(t, err)
	require.Contains(t, out, "valid:      2")

	out, err = run(t, "cache", "clear", "--older-than", "1h")
	require.NoError(t, err)
	require.Equal(t, "removed 0 entries", strings.TrimSpace(out))

	out, err = run(t, "cache", "clear")
	require.NoError(t, err)
	require.Equal(t, "removed 2 entries", strings.TrimSpace(out))
	require.Equal(t, 0, store.Stats().TotalFiles)
}

func TestCacheClear_RejectsNegativeAge(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "cache", "clear", "--older-than", "-1h")
	require.Error(t, err)
}

func TestConfigErrorsSurface(t *testing.T) {
	setupEnv(t)
	t.Setenv("DIP_WAHLPERIODE", "0")
	_, err := run(t, "cache", "stats")
	require.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "hash-password", "s3cret-admin")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	require.True(t, auth.CheckCredentials("admin", "s3cret-admin", "admin", hash))
	require.False(t, auth.CheckCredentials("admin", "other", "admin", hash))
}

func TestHashPassword_FromStdin(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("from-stdin\n"))
	cmd.SetArgs([]string{"hash-password"})
	require.NoError(t, cmd.Execute())
	require.True(t, auth.CheckCredentials("admin", "from-stdin", "admin", strings.TrimSpace(out.String())))

	cmd = NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"hash-password"})
	require.Error(t, cmd.Execute())
}
