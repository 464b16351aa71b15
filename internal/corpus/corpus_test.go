package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/errors"
)

func writeDocs(t *testing.T, contents ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(contents))
	for i, c := range contents {
		paths[i] = filepath.Join(dir, "file"+string(rune('a'+i))+".txt")
		require.NoError(t, os.WriteFile(paths[i], []byte(c), 0644))
	}
	return paths
}

func TestLoadPreservesOrder(t *testing.T) {
	paths := writeDocs(t, "first doc", "second\ndoc", "", "fourth")

	docs, err := NewLoader(2).Load(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, []string{"first doc", "second\ndoc", "", "fourth"}, docs)
}

func TestLoadSubstitutesEmptyForMissingFiles(t *testing.T) {
	paths := writeDocs(t, "present")
	paths = append([]string{filepath.Join(t.TempDir(), "missing.txt")}, paths...)
	paths = append(paths, filepath.Join(t.TempDir(), "missing.pdf"))

	docs, err := NewLoader(0).Load(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "present", ""}, docs)
}

func TestLoadNothing(t *testing.T) {
	docs, err := NewLoader(1).Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(1).Load(ctx, writeDocs(t, "a", "b"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadDocumentErrors(t *testing.T) {
	_, err := ReadDocument(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, apperrors.ErrFileNotFound)

	_, err = ReadDocument(filepath.Join(t.TempDir(), "nope.PDF"))
	assert.ErrorIs(t, err, apperrors.ErrFileNotFound)

	bogus := filepath.Join(t.TempDir(), "bogus.pdf")
	require.NoError(t, os.WriteFile(bogus, []byte("not a pdf at all"), 0644))
	_, err = ReadDocument(bogus)
	assert.Error(t, err)
}
