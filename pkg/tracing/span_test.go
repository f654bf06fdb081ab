package tracing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildInheritsTraceID(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "build", "b-1")
	ctx, dedup := StartChildSpan(ctx, "dedup")
	_, inner := StartChildSpan(ctx, "scan")

	assert.Equal(t, "b-1", dedup.TraceID)
	assert.Equal(t, "b-1", inner.TraceID)
	assert.Same(t, dedup, root.Child("dedup"))
	assert.Same(t, inner, dedup.Child("scan"))
	assert.Nil(t, root.Child("scan"))
}

func TestChildWithoutParent(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, span.TraceID)
	assert.Same(t, span, FromContext(ctx))
}

func TestEndIsIdempotent(t *testing.T) {
	_, span := StartSpan(context.Background(), "build", "b")
	span.End()
	first := span.Duration
	span.End()
	assert.Equal(t, first, span.Duration)
}

func TestFailKeepsFirstError(t *testing.T) {
	_, span := StartSpan(context.Background(), "merge", "b")
	first := errors.New("corrupt partial")
	span.Fail(nil)
	span.Fail(first)
	span.Fail(errors.New("later"))

	require.ErrorIs(t, span.Err(), first)
	v, ok := span.Attr("error")
	require.True(t, ok)
	assert.Equal(t, "corrupt partial", v)
}

func TestWalkOrder(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "build", "b")
	for _, name := range []string{"dedup", "registry", "index"} {
		StartChildSpan(ctx, name)
	}
	idx := root.Child("index")
	StartChildSpan(context.WithValue(ctx, contextKey{}, idx), "worker")

	var got []string
	var depths []int
	root.Walk(func(depth int, s *Span) {
		got = append(got, s.Name)
		depths = append(depths, depth)
	})
	assert.Equal(t, []string{"build", "dedup", "registry", "index", "worker"}, got)
	assert.Equal(t, []int{0, 1, 1, 1, 2}, depths)
}

func TestConcurrentChildren(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "index", "b")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, s := StartChildSpan(ctx, "worker")
			s.SetAttr("postings", 1)
			s.End()
		}()
	}
	wg.Wait()

	n := 0
	root.Walk(func(depth int, _ *Span) {
		if depth == 1 {
			n++
		}
	})
	assert.Equal(t, 8, n)
}
