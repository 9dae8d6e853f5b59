package mocks

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(stages *[]domain.Stage) generation.Reporter {
	return generation.ReporterFunc(func(_ context.Context, s domain.Stage) error {
		*stages = append(*stages, s)
		return nil
	})
}

func TestMockGenerator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reports stages and tracks requests", func(t *testing.T) {
		gen := NewMockGeneratorWithResult("done")
		var stages []domain.Stage

		require.NoError(t, gen.Generate(ctx, generation.Request{TaskID: "t1", Prompt: "cat"}, collect(&stages)))
		require.Len(t, stages, 2)
		assert.Equal(t, "done", stages[1].Result)
		assert.Equal(t, []generation.Request{{TaskID: "t1", Prompt: "cat"}}, gen.Requests())
	})

	t.Run("returns configured error", func(t *testing.T) {
		sentinel := errors.New("boom")
		gen := NewMockGeneratorWithError(30, sentinel)
		var stages []domain.Stage

		err := gen.Generate(ctx, generation.Request{}, collect(&stages))
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 30, stages[0].Progress)
	})

	t.Run("stops when reporter rejects a stage", func(t *testing.T) {
		sentinel := errors.New("rejected")
		gen := NewMockGeneratorWithResult("done")
		rep := generation.ReporterFunc(func(context.Context, domain.Stage) error { return sentinel })

		assert.ErrorIs(t, gen.Generate(ctx, generation.Request{}, rep), sentinel)
	})
}

func TestMockResultSink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sink := &MockResultSink{BaseURL: "https://cdn.example.com"}
	url, err := sink.Store(ctx, "t1", domain.MediaKindAudio, "audio/mpeg", []byte("mp3"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/audio/t1", url)
	assert.Equal(t, []byte("mp3"), sink.Stored("t1"))
	assert.Nil(t, sink.Stored("t2"))

	failing := &MockResultSink{Err: errors.New("unavailable")}
	_, err = failing.Store(ctx, "t1", domain.MediaKindAudio, "audio/mpeg", nil)
	assert.Error(t, err)
	assert.Empty(t, failing.Uploads())
}
