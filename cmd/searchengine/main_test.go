package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/errors"
)

// runWith calls run with a fresh flag set so it can be invoked more than
// once per test binary.
func runWith(t *testing.T, args ...string) error {
	t.Helper()
	oldArgs, oldFlags := os.Args, flag.CommandLine
	t.Cleanup(func() { os.Args, flag.CommandLine = oldArgs, oldFlags })
	os.Args = append([]string{"searchengine"}, args...)
	flag.CommandLine = flag.NewFlagSet("searchengine", flag.ContinueOnError)
	return run()
}

func writeWorkspace(t *testing.T, requests string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"resources/file001.txt": "milk milk water",
		"resources/file002.txt": "water",
		"requests.json":         requests,
		"config.json": `{
			"config": {"name": "CmdTest", "max_responses": 5},
			"files": ["resources/file001.txt", "resources/file002.txt"],
			"logging": {"level": "error"}
		}`,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	t.Chdir(dir)
	return dir
}

func TestRunWritesAnswers(t *testing.T) {
	dir := writeWorkspace(t, `{"requests": ["milk", "sugar"]}`)

	require.NoError(t, runWith(t, "-config", filepath.Join(dir, "config.json"), "-run-id", "cmd-1"))

	data, err := os.ReadFile(filepath.Join(dir, "answers.json"))
	require.NoError(t, err)
	var got map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{"result": true, "docid": 0.0, "rank": 1.0}, got["answers"]["request001"])
	assert.Equal(t, map[string]any{"result": false}, got["answers"]["request002"])
}

func TestRunReturnsErrors(t *testing.T) {
	dir := writeWorkspace(t, `{"requests": "milk"}`)

	err := runWith(t, "-config", filepath.Join(dir, "config.json"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	err = runWith(t, "-config", filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}
