package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "run", "")
	require.Len(t, root.TraceID, 16)

	childCtx, load := StartChildSpan(ctx, "load")
	_, inner := StartChildSpan(childCtx, "read")
	inner.End()
	load.End()
	_, search := StartChildSpan(ctx, "search")
	search.SetError(errors.New("boom"))
	search.End()
	root.End()

	assert.Same(t, root, SpanFromContext(ctx))
	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "load", children[0].Name)
	assert.Equal(t, root.TraceID, children[1].TraceID)
	assert.Len(t, children[0].Children(), 1)
	assert.Greater(t, int64(root.Duration), int64(0))
}

func TestEndIsIdempotent(t *testing.T) {
	_, s := StartSpan(context.Background(), "x", "t")
	s.End()
	first := s.Duration
	s.End()
	assert.Equal(t, first, s.Duration)
}

func TestLogWritesEverySpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx, root := StartSpan(context.Background(), "run", "abc")
	_, child := StartChildSpan(ctx, "build")
	child.SetAttr("terms", 7)
	child.End()
	root.End()
	root.Log(logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=run")
	assert.Contains(t, lines[1], "span=build")
	assert.Contains(t, lines[1], "terms=7")
	assert.Contains(t, lines[1], "trace_id=abc")
}

func TestChildWithoutParent(t *testing.T) {
	_, s := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, s.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}
