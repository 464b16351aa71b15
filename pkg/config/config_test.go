package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const jsonConfig = `{
  "config": {
    "name": "SkillboxSearchEngine",
    "version": "0.1",
    "max_responses": 3
  },
  "files": [
    "resources/file001.txt",
    "resources/file002.txt"
  ]
}`

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", jsonConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SkillboxSearchEngine", cfg.App.Name)
	assert.Equal(t, "0.1", cfg.App.Version)
	assert.Equal(t, 3, cfg.App.MaxResponses)
	assert.Equal(t, []string{"resources/file001.txt", "resources/file002.txt"}, cfg.Files)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadYAMLWithSubsystems(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
config:
  name: engine
files: [a.txt]
search:
  workers: 2
server:
  corsOrigins: ["https://app.example"]
redis:
  enabled: true
  cacheTTL: 2m
kafka:
  enabled: true
  brokers: [k1:9092, k2:9092]
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, cfg.App.Version)
	assert.Equal(t, DefaultMaxResponses, cfg.App.MaxResponses)
	assert.Equal(t, 2, cfg.Search.Workers)
	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.Equal(t, []string{"https://app.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Zero(t, cfg.Server.RateLimit)
	assert.False(t, cfg.Server.TrustForwardedFor)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "search-events", cfg.Kafka.Topics.SearchEvents)
	assert.Equal(t, "search-analytics", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Postgres.Enabled)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing config section", `{"files": ["a.txt"]}`},
		{"missing name", `{"config": {"version": "1"}, "files": ["a.txt"]}`},
		{"empty name", `{"config": {"name": ""}, "files": ["a.txt"]}`},
		{"no files", `{"config": {"name": "x"}}`},
		{"empty files", `{"config": {"name": "x"}, "files": []}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.json", tc.content)
			_, err := Load(path)
			assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{"config": {`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, apperrors.ErrFileNotFound)
}

func TestZeroMaxResponsesBecomesOne(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{"config": {"name": "x", "max_responses": 0}, "files": ["a"]}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.App.MaxResponses)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SE_MAX_RESPONSES", "9")
	t.Setenv("SE_SEARCH_WORKERS", "1")
	t.Setenv("SE_LOGGING_LEVEL", "error")
	t.Setenv("SE_KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("SE_SERVER_PORT", "not-a-number")
	t.Setenv("SE_SERVER_RATE_LIMIT", "120")
	t.Setenv("SE_SERVER_TRUST_FORWARDED_FOR", "true")

	path := writeFile(t, t.TempDir(), "config.json", jsonConfig)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.App.MaxResponses)
	assert.Equal(t, 1, cfg.Search.Workers)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.RateLimit)
	assert.True(t, cfg.Server.TrustForwardedFor)
}

func TestResolvePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "resources/file001.txt", "hello")
	writeFile(t, dir, "requests.json", `{"requests": []}`)
	path := writeFile(t, dir, "config.json", jsonConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	paths := cfg.DocumentPaths()
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "resources", "file001.txt"), paths[0])
	// Missing files fall back to the path as written.
	assert.Equal(t, "resources/file002.txt", paths[1])
	assert.Equal(t, filepath.Join(dir, "requests.json"), cfg.RequestsPath())
	assert.Equal(t, filepath.Join(dir, "answers.json"), cfg.AnswersPath())

	abs := filepath.Join(dir, "elsewhere.txt")
	assert.Equal(t, abs, cfg.Resolve(abs))
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "JSON/requests.json", `{}`)
	writeFile(t, root, "config.json", `{}`)
	work := filepath.Join(root, "build")
	require.NoError(t, os.MkdirAll(work, 0755))
	t.Chdir(root)

	got, err := Find("requests.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("JSON", "requests.json"), got)

	t.Chdir(work)
	got, err = Find("config.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "config.json"), got)

	_, err = Find("absent.json")
	assert.ErrorIs(t, err, apperrors.ErrFileNotFound)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", p.DSN())
}
