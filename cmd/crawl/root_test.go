package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"focused-crawler/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	assert.Equal(t, "crawl [seed-url...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	for _, name := range []string{"config", "seed", "page-cap", "log-level", "metrics-addr"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "c", cmd.Flags().Lookup("config").Shorthand)
}

func TestLoadConfigMergesFlags(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seeds:\n  - http://a.example/\npage_cap: 10\n"), 0o644))

	cmd := NewRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--seed", "http://b.example/",
		"--page-cap", "3",
		"--log-level", "debug",
		"--metrics-addr", "off",
		"http://c.example/",
	}))

	cfg, err := loadConfig(cmd, cmd.Flags().Args())
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.example/", "http://b.example/", "http://c.example/"}, cfg.Seeds)
	assert.Equal(t, 3, cfg.PageCap)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadConfigRequiresSeeds(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page_cap: 10\n"), 0o644))

	cmd := NewRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))
	_, err := loadConfig(cmd, nil)
	assert.ErrorIs(t, err, config.ErrNoSeeds)
}

func TestRunCrawlWritesOutput(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			http.NotFound(w, r)
		case "/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title>Church</title></head><body><p>The pope.</p><a href="/next">next</a></body></html>`))
		case "/next":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title>Next</title></head><body><p>A bishop.</p></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "output")
	logs := filepath.Join(dir, "log")
	yaml := "output_dir: " + out + "\n" +
		"log_dir: " + logs + "\n" +
		"default_delay: 0s\n" +
		"relevance_cutoff: 10\n" +
		"accept_languages: []\n" +
		"log_level: error\n"
	path := filepath.Join(dir, "crawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--config", path, "--metrics-addr", "off", srv.URL + "/"})
	require.NoError(t, cmd.Execute())

	crawled, err := os.ReadFile(filepath.Join(out, "crawled_links.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(crawled), srv.URL+"/next")

	assert.FileExists(t, filepath.Join(out, "docs", "document_1.txt"))
	assert.FileExists(t, filepath.Join(out, "docs", "document_2.txt"))

	final, err := os.ReadFile(filepath.Join(logs, "final.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Number of crawled links: 2, Number of discovered links: 2\n", string(final))
}
