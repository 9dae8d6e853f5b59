package task

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/omnimedia-api/internal/broadcast"
	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/events"
	"github.com/phrazzld/omnimedia-api/internal/generation"
	"github.com/phrazzld/omnimedia-api/internal/generation/simulated"
	"github.com/phrazzld/omnimedia-api/internal/mocks"
	"github.com/phrazzld/omnimedia-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher captures every published message per task.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs map[string][]domain.Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{msgs: make(map[string][]domain.Event)}
}

func (p *recordingPublisher) Publish(_ context.Context, taskID string, msg any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs[taskID] = append(p.msgs[taskID], msg.(domain.Event))
	return 1
}

func (p *recordingPublisher) events(taskID string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.msgs[taskID]...)
}

// recordingEmitter captures lifecycle events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.TaskEvent
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.TaskEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) types(taskID string) []events.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []events.EventType
	for _, ev := range e.events {
		if ev.Task.ID == taskID {
			out = append(out, ev.Type)
		}
	}
	return out
}

// blockingGenerator reports one stage and then waits for ctx or release.
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *blockingGenerator) Generate(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	if err := rep.Report(ctx, domain.Stage{Name: "started", Progress: 10}); err != nil {
		return err
	}
	g.once.Do(func() { close(g.started) })
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.release:
		return rep.Report(ctx, domain.Stage{Name: "complete", Progress: 100, Result: "done"})
	}
}

func fastRegistry() *generation.Registry {
	cfg := simulated.Config{StageDelay: time.Millisecond, WordDelay: time.Millisecond}
	return generation.NewRegistry(
		simulated.NewImage(cfg),
		simulated.NewVideo(cfg),
		simulated.NewAudio(cfg),
		simulated.NewText(cfg),
	)
}

type harness struct {
	d         *Dispatcher
	store     *store.MemoryTaskStore
	publisher *recordingPublisher
	emitter   *recordingEmitter
}

func newHarness(t *testing.T, cfg Config, registry *generation.Registry, sink ResultSink) *harness {
	t.Helper()
	h := &harness{
		store:     store.NewMemoryTaskStore(),
		publisher: newRecordingPublisher(),
		emitter:   &recordingEmitter{},
	}
	d, err := NewDispatcher(cfg, Dependencies{
		Store:     h.store,
		Registry:  registry,
		Publisher: h.publisher,
		Emitter:   h.emitter,
		Sink:      sink,
	}, setupTestLogger())
	require.NoError(t, err)
	d.Start()
	t.Cleanup(d.Stop)
	h.d = d
	return h
}

func waitDone(t *testing.T, handle *Handle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, handle.Wait(ctx), "task %s did not finish", handle.ID())
}

func TestNewDispatcher_RequiresCollaborators(t *testing.T) {
	_, err := NewDispatcher(DefaultConfig(), Dependencies{}, setupTestLogger())
	assert.Error(t, err)

	_, err = NewDispatcher(Config{QueueSize: 0}, Dependencies{
		Store:     store.NewMemoryTaskStore(),
		Registry:  fastRegistry(),
		Publisher: newRecordingPublisher(),
	}, setupTestLogger())
	assert.Error(t, err)
}

func TestDispatcher_SubmitImageCompletes(t *testing.T) {
	h := newHarness(t, DefaultConfig(), fastRegistry(), nil)
	ctx := context.Background()

	handle, err := h.d.Submit(ctx, SubmitRequest{Prompt: "cat", Kind: "image", RealTime: true})
	require.NoError(t, err)

	// Submit returns before generation finishes, so the task is queued or
	// already moving
	snap, err := h.d.Status(ctx, handle.ID())
	require.NoError(t, err)
	assert.Equal(t, "cat", snap.Prompt)
	assert.Equal(t, domain.MediaKindImage, snap.MediaKind)
	assert.Equal(t, "default", snap.Metadata["style"])
	assert.Equal(t, "hd", snap.Metadata["quality"])
	assert.Equal(t, true, snap.Metadata["real_time"])

	waitDone(t, handle)

	final, err := h.d.Status(ctx, handle.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.Contains(t, final.Result, "data:image/svg+xml;base64,")
	require.NotNil(t, final.CompletedAt)

	evs := h.publisher.events(handle.ID())
	require.Len(t, evs, 6)
	last := -1
	for _, ev := range evs {
		assert.Equal(t, domain.EventProgressUpdate, ev.Type)
		stage := ev.Data.(domain.Stage)
		assert.GreaterOrEqual(t, stage.Progress, last)
		last = stage.Progress
	}
	assert.Equal(t, 100, last)

	assert.Equal(t, []events.EventType{events.TaskCreated, events.TaskCompleted}, h.emitter.types(handle.ID()))
}

func TestDispatcher_SubmitValidation(t *testing.T) {
	h := newHarness(t, DefaultConfig(), fastRegistry(), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SubmitRequest
		want error
	}{
		{"unsupported kind", SubmitRequest{Prompt: "a", Kind: "holodeck"}, domain.ErrUnsupportedKind},
		{"missing prompt", SubmitRequest{Kind: "image"}, domain.ErrValidation},
		{"blank prompt", SubmitRequest{Prompt: "   ", Kind: "image"}, domain.ErrEmptyPrompt},
		{"missing kind", SubmitRequest{Prompt: "cat"}, domain.ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handle, err := h.d.Submit(ctx, tc.req)
			assert.Nil(t, handle)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	counts, err := h.store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total, "rejected requests must not create tasks")
}

func TestDispatcher_ConcurrentSubmissionsAreIndependent(t *testing.T) {
	h := newHarness(t, DefaultConfig(), fastRegistry(), nil)
	ctx := context.Background()

	prompts := []string{"a cat", "a cat", "a cat"}
	handles := make([]*Handle, len(prompts))
	var wg sync.WaitGroup
	for i, p := range prompts {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			handle, err := h.d.Submit(ctx, SubmitRequest{Prompt: p, Kind: "image"})
			if assert.NoError(t, err) {
				handles[i] = handle
			}
		}(i, p)
	}
	wg.Wait()

	ids := map[string]bool{}
	results := map[string]bool{}
	for _, handle := range handles {
		require.NotNil(t, handle)
		waitDone(t, handle)
		task, err := h.d.Status(ctx, handle.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, task.Status)
		ids[task.ID] = true
		results[task.Result] = true
	}
	assert.Len(t, ids, 3)
	assert.Len(t, results, 3)
}

func TestDispatcher_TextStreamsToSubscriber(t *testing.T) {
	hub := broadcast.NewHub(setupTestLogger())
	gen := newBlockingGenerator()
	registry := generation.NewRegistry(nil, nil, nil, generation.Generator(textThenBlock{gen: gen}))

	d, err := NewDispatcher(DefaultConfig(), Dependencies{
		Store:       store.NewMemoryTaskStore(),
		Registry:    registry,
		Publisher:   hub,
		Connections: hub,
	}, setupTestLogger())
	require.NoError(t, err)
	d.Start()
	defer d.Stop()

	conn := broadcast.NewChannelConnection(64)
	handle, err := d.Submit(context.Background(), SubmitRequest{Prompt: "story", Kind: "text"})
	require.NoError(t, err)

	// The generator holds until released, so subscribing now sees every
	// stage after the first
	<-gen.started
	hub.Subscribe(conn, handle.ID())
	close(gen.release)
	waitDone(t, handle)

	var got []domain.EventType
	var lastText string
	for len(conn.Messages()) > 0 {
		var ev struct {
			Type domain.EventType `json:"type"`
			Data domain.Stage     `json:"data"`
		}
		require.NoError(t, json.Unmarshal(<-conn.Messages(), &ev))
		got = append(got, ev.Type)
		lastText = ev.Data.Text
	}
	assert.Equal(t, []domain.EventType{domain.EventTextStream, domain.EventTextStream}, got)
	assert.Equal(t, "once upon a time", lastText)

	health, err := d.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.ActiveConnections)
	assert.Equal(t, 1, health.TotalTasks)
	assert.Equal(t, 0, health.ActiveTasks)
}

// textThenBlock streams text through a TextStream, pausing on gen between
// the first chunk and the rest.
type textThenBlock struct{ gen *blockingGenerator }

func (g textThenBlock) Generate(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	stream := generation.NewTextStream(rep)
	if err := stream.Write(ctx, "once "); err != nil {
		return err
	}
	g.gen.once.Do(func() { close(g.gen.started) })
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.gen.release:
	}
	if err := stream.Write(ctx, "upon a time"); err != nil {
		return err
	}
	return stream.Finish(ctx)
}

func TestDispatcher_Cancel(t *testing.T) {
	gen := newBlockingGenerator()
	h := newHarness(t, DefaultConfig(), generation.NewRegistry(gen, nil, nil, nil), nil)
	ctx := context.Background()

	handle, err := h.d.Submit(ctx, SubmitRequest{Prompt: "cat", Kind: "image"})
	require.NoError(t, err)
	<-gen.started

	require.NoError(t, h.d.Cancel(ctx, handle.ID()))
	waitDone(t, handle)

	task, err := h.d.Status(ctx, handle.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Equal(t, FailureCancelled, task.Error)
	assert.Equal(t, 10, task.Progress)
	assert.Empty(t, task.Result)

	evs := h.publisher.events(handle.ID())
	require.NotEmpty(t, evs)
	assert.Equal(t, domain.EventTaskFailed, evs[len(evs)-1].Type)
	assert.Equal(t, []events.EventType{events.TaskCreated, events.TaskFailed}, h.emitter.types(handle.ID()))

	t.Run("finished task", func(t *testing.T) {
		assert.ErrorIs(t, h.d.Cancel(ctx, handle.ID()), ErrNotRunning)
	})
	t.Run("unknown task", func(t *testing.T) {
		assert.ErrorIs(t, h.d.Cancel(ctx, "00000000-0000-0000-0000-000000000000"), store.ErrTaskNotFound)
	})
}

func TestDispatcher_Timeout(t *testing.T) {
	gen := newBlockingGenerator()
	cfg := DefaultConfig()
	cfg.GenerationTimeout = 50 * time.Millisecond
	h := newHarness(t, cfg, generation.NewRegistry(gen, nil, nil, nil), nil)

	handle, err := h.d.Submit(context.Background(), SubmitRequest{Prompt: "cat", Kind: "image"})
	require.NoError(t, err)
	waitDone(t, handle)

	task, err := h.d.Status(context.Background(), handle.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Equal(t, FailureTimedOut, task.Error)
}

func TestDispatcher_GeneratorErrorIsRedacted(t *testing.T) {
	gen := mocks.NewMockGeneratorWithError(30, errors.New("upstream rejected key sk-abcdefghijklmnopqrstuvwx"))
	h := newHarness(t, DefaultConfig(), generation.NewRegistry(nil, nil, gen, nil), nil)

	handle, err := h.d.Submit(context.Background(), SubmitRequest{Prompt: "hum", Kind: "audio"})
	require.NoError(t, err)
	waitDone(t, handle)

	task, err := h.d.Status(context.Background(), handle.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Equal(t, 30, task.Progress)
	assert.Contains(t, task.Error, "upstream rejected key")
	assert.NotContains(t, task.Error, "sk-abcdefghijklmnopqrstuvwx")

	evs := h.publisher.events(handle.ID())
	last := evs[len(evs)-1]
	assert.Equal(t, domain.EventTaskFailed, last.Type)
	assert.Equal(t, domain.FailureData{Progress: 30, Error: task.Error}, last.Data)
}

func TestDispatcher_IncompleteGenerationFails(t *testing.T) {
	gen := mocks.MockGeneratorThatStalls(50)
	h := newHarness(t, DefaultConfig(), generation.NewRegistry(gen, nil, nil, nil), nil)

	handle, err := h.d.Submit(context.Background(), SubmitRequest{Prompt: "cat", Kind: "image"})
	require.NoError(t, err)
	waitDone(t, handle)

	task, err := h.d.Status(context.Background(), handle.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Equal(t, generation.ErrIncompleteGeneration.Error(), task.Error)
}

func TestDispatcher_QueueFull(t *testing.T) {
	gen := newBlockingGenerator()
	cfg := Config{WorkerCount: 1, QueueSize: 1, GenerationTimeout: time.Minute}
	h := newHarness(t, cfg, generation.NewRegistry(gen, nil, nil, nil), nil)
	ctx := context.Background()

	running, err := h.d.Submit(ctx, SubmitRequest{Prompt: "one", Kind: "image"})
	require.NoError(t, err)
	<-gen.started

	_, err = h.d.Submit(ctx, SubmitRequest{Prompt: "two", Kind: "image"})
	require.NoError(t, err)

	_, err = h.d.Submit(ctx, SubmitRequest{Prompt: "three", Kind: "image"})
	assert.ErrorIs(t, err, ErrQueueFull)

	counts, err := h.store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 2, counts.Active, "the rejected task is recorded as failed")

	close(gen.release)
	waitDone(t, running)
}

func TestDispatcher_StopFailsPendingTasks(t *testing.T) {
	gen := newBlockingGenerator()
	cfg := Config{WorkerCount: 1, QueueSize: 4, GenerationTimeout: time.Minute}
	h := newHarness(t, cfg, generation.NewRegistry(gen, nil, nil, nil), nil)
	ctx := context.Background()

	running, err := h.d.Submit(ctx, SubmitRequest{Prompt: "one", Kind: "image"})
	require.NoError(t, err)
	<-gen.started
	queued, err := h.d.Submit(ctx, SubmitRequest{Prompt: "two", Kind: "image"})
	require.NoError(t, err)

	h.d.Stop()
	waitDone(t, running)
	waitDone(t, queued)

	for _, id := range []string{running.ID(), queued.ID()} {
		task, err := h.d.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, task.Status)
		assert.Equal(t, FailureShutdown, task.Error)
	}

	_, err = h.d.Submit(ctx, SubmitRequest{Prompt: "late", Kind: "image"})
	assert.ErrorIs(t, err, ErrDispatcherStopped)
}

func TestDispatcher_ResultSink(t *testing.T) {
	t.Run("binary result is uploaded", func(t *testing.T) {
		sink := &mocks.MockResultSink{BaseURL: "https://cdn.example.com"}
		h := newHarness(t, DefaultConfig(), fastRegistry(), sink)

		handle, err := h.d.Submit(context.Background(), SubmitRequest{Prompt: "waves", Kind: "audio"})
		require.NoError(t, err)
		waitDone(t, handle)

		task, err := h.d.Status(context.Background(), handle.ID())
		require.NoError(t, err)
		want := "https://cdn.example.com/audio/" + handle.ID()
		assert.Equal(t, want, task.Result)
		assert.Equal(t, want, task.StreamRef)
		assert.NotEmpty(t, sink.Stored(handle.ID()))
		assert.Equal(t, "audio/mpeg", sink.Uploads()[0].MimeType)
	})

	t.Run("sink failure keeps result inline", func(t *testing.T) {
		h := newHarness(t, DefaultConfig(), fastRegistry(), &mocks.MockResultSink{Err: errors.New("bucket unavailable")})

		handle, err := h.d.Submit(context.Background(), SubmitRequest{Prompt: "waves", Kind: "video"})
		require.NoError(t, err)
		waitDone(t, handle)

		task, err := h.d.Status(context.Background(), handle.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, task.Status)
		assert.True(t, generation.IsDataURL(task.Result))
		assert.Equal(t, generation.StreamPath(handle.ID()), task.StreamRef)
	})

	t.Run("text is never uploaded", func(t *testing.T) {
		sink := &mocks.MockResultSink{BaseURL: "https://cdn.example.com"}
		h := newHarness(t, DefaultConfig(), fastRegistry(), sink)

		handle, err := h.d.Submit(context.Background(), SubmitRequest{Prompt: "poem", Kind: "text"})
		require.NoError(t, err)
		waitDone(t, handle)
		assert.Empty(t, sink.Uploads())
	})
}

func TestDispatcher_StatusUnknown(t *testing.T) {
	h := newHarness(t, DefaultConfig(), fastRegistry(), nil)

	_, err := h.d.Status(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	_, err = h.d.Status(context.Background(), "7f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}
