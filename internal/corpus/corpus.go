// Package corpus reads the documents named in the configuration. A document
// that cannot be read becomes an empty string so that document ids, which
// are positions in the configured file list, stay stable.
package corpus

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/errors"
)

// Loader reads document files concurrently.
type Loader struct {
	concurrency int
	logger      *slog.Logger
}

// NewLoader returns a Loader reading at most concurrency files at once; zero
// or less means runtime.GOMAXPROCS(0).
func NewLoader(concurrency int) *Loader {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Loader{
		concurrency: concurrency,
		logger:      slog.Default().With("component", "corpus-loader"),
	}
}

// Load returns the text of every path, in order. Unreadable files yield ""
// and a warning. The only error is ctx's.
func (l *Loader) Load(ctx context.Context, paths []string) ([]string, error) {
	docs := make([]string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := ReadDocument(path)
			if err != nil {
				l.logger.Warn("document unreadable, indexing it as empty",
					"doc_id", i,
					"path", path,
					"error", err,
				)
				return nil
			}
			docs[i] = text
			l.logger.Debug("document loaded",
				"doc_id", i,
				"path", path,
				"chars", len(text),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// ReadDocument returns the plain text of one file. PDF files are converted
// to text; anything else is read as-is.
func ReadDocument(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path)
	}
	return readText(path)
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("reading %s: %w", path, apperrors.ErrFileNotFound)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return lineBreaks.Replace(string(data)), nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func readPDF(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("reading %s: %w", path, apperrors.ErrFileNotFound)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()
	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", fmt.Errorf("reading text of %s: %w", path, err)
	}
	return buf.String(), nil
}
