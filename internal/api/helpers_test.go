package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/omnimedia-api/internal/broadcast"
	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/events"
	"github.com/phrazzld/omnimedia-api/internal/generation"
	"github.com/phrazzld/omnimedia-api/internal/generation/simulated"
	"github.com/phrazzld/omnimedia-api/internal/store"
	"github.com/phrazzld/omnimedia-api/internal/task"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubTasks is a hand-written TaskService for exercising error mapping.
type stubTasks struct {
	submitErr error
	tasks     map[string]domain.Task
	cancelErr error
	health    task.Health
	healthErr error
}

func (s *stubTasks) Submit(context.Context, task.SubmitRequest) (*task.Handle, error) {
	return nil, s.submitErr
}

func (s *stubTasks) Status(_ context.Context, id string) (domain.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, store.ErrTaskNotFound
	}
	return t, nil
}

func (s *stubTasks) Cancel(_ context.Context, id string) error {
	if _, ok := s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	return s.cancelErr
}

func (s *stubTasks) Health(context.Context) (task.Health, error) {
	return s.health, s.healthErr
}

// gatedGenerator waits for release before reporting a halfway stage and a
// final PNG result unique to the task.
type gatedGenerator struct {
	release chan struct{}
}

func newGatedGenerator() *gatedGenerator {
	return &gatedGenerator{release: make(chan struct{})}
}

func (g *gatedGenerator) Generate(ctx context.Context, req generation.Request, rep generation.Reporter) error {
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := rep.Report(ctx, domain.Stage{Name: "halfway", Progress: 50, Message: "Halfway there"}); err != nil {
		return err
	}
	return rep.Report(ctx, domain.Stage{
		Name:     "complete",
		Progress: domain.MaxProgress,
		Result:   generation.DataURL("image/png", []byte("png-"+req.TaskID)),
	})
}

type testEnv struct {
	server     *httptest.Server
	hub        *broadcast.Hub
	dispatcher *task.Dispatcher
	gate       *gatedGenerator
}

// newTestEnv wires a real dispatcher, hub and announcer behind the HTTP
// handlers. Image tasks use the gated generator; the other kinds run the
// simulated generators with millisecond delays.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()

	hub := broadcast.NewHub(logger)
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(broadcast.NewAnnouncer(hub, logger))

	gate := newGatedGenerator()
	simCfg := simulated.Config{StageDelay: time.Millisecond, WordDelay: time.Millisecond}
	registry := generation.NewRegistry(
		gate,
		simulated.NewVideo(simCfg),
		simulated.NewAudio(simCfg),
		simulated.NewText(simCfg),
	)

	d, err := task.NewDispatcher(task.DefaultConfig(), task.Dependencies{
		Store:       store.NewMemoryTaskStore(),
		Registry:    registry,
		Publisher:   hub,
		Connections: hub,
		Emitter:     emitter,
	}, logger)
	require.NoError(t, err)
	d.Start()

	server := httptest.NewServer(newTestRouter(t, d, hub))
	t.Cleanup(func() {
		server.Close()
		d.Stop()
	})

	return &testEnv{server: server, hub: hub, dispatcher: d, gate: gate}
}

func newTestRouter(t *testing.T, tasks TaskService, hub *broadcast.Hub) http.Handler {
	t.Helper()

	wsHandler, err := NewWSHandler(hub, nil, broadcast.DefaultWSConfig(), testLogger())
	require.NoError(t, err)
	taskHandler := NewTaskHandler(tasks)

	r := chi.NewRouter()
	r.Post("/api/generate", taskHandler.Generate)
	r.Get("/api/health", taskHandler.Health)
	r.Get("/api/task/{id}", taskHandler.GetTask)
	r.Delete("/api/task/{id}", taskHandler.CancelTask)
	r.Get("/api/task/{id}/events", NewSSEHandler(tasks, hub).ServeHTTP)
	r.Get("/stream/{id}", taskHandler.Stream)
	r.Handle("/ws", wsHandler)
	return r
}

func (e *testEnv) submit(t *testing.T, body string) GenerateResponse {
	t.Helper()
	resp, err := http.Post(e.server.URL+"/api/generate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out GenerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) waitStatus(t *testing.T, id string, want domain.TaskStatus) domain.Task {
	t.Helper()
	var snapshot domain.Task
	require.Eventually(t, func() bool {
		var err error
		snapshot, err = e.dispatcher.Status(context.Background(), id)
		return err == nil && snapshot.Status == want
	}, 5*time.Second, 5*time.Millisecond)
	return snapshot
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}
