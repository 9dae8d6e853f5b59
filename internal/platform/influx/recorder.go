package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/phrazzld/omnimedia-api/internal/events"
)

// Measurement is the name of the points written for task events.
const Measurement = "media_task"

// Config holds the InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Recorder writes a point per task lifecycle event.
type Recorder struct {
	writer pointWriter
	close  func()
	logger *slog.Logger
}

// NewRecorder connects to InfluxDB, checks its health and returns a Recorder
// writing to cfg.Bucket.
func NewRecorder(ctx context.Context, cfg Config, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		logger.Warn("InfluxDB health check did not pass", "status", health.Status)
	}

	logger.Info("InfluxDB recorder initialized",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket)

	return newRecorder(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), client.Close, logger), nil
}

func newRecorder(writer pointWriter, closeFn func(), logger *slog.Logger) *Recorder {
	if closeFn == nil {
		closeFn = func() {}
	}
	return &Recorder{
		writer: writer,
		close:  closeFn,
		logger: logger.With("component", "influx_recorder"),
	}
}

// HandleEvent implements events.EventHandler.
func (r *Recorder) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	point := Point(event)
	if err := r.writer.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write to InfluxDB: %w", err)
	}

	r.logger.DebugContext(ctx, "task event recorded",
		"event_type", event.Type,
		"task_id", event.Task.ID)
	return nil
}

// Close releases the underlying client.
func (r *Recorder) Close() {
	r.close()
}

// Point converts a lifecycle event into an InfluxDB point. Duration is
// only meaningful for terminal events and is zero for task.created.
func Point(event *events.TaskEvent) *write.Point {
	tags := map[string]string{
		"event":      string(event.Type),
		"media_type": string(event.Task.MediaKind),
		"status":     string(event.Task.Status),
	}

	fields := map[string]interface{}{
		"task_id":  event.Task.ID,
		"progress": event.Task.Progress,
	}
	if event.IsTerminal() {
		fields["duration_ms"] = event.Duration().Milliseconds()
	} else {
		fields["duration_ms"] = int64(0)
	}

	return influxdb2.NewPoint(Measurement, tags, fields, event.OccurredAt)
}

var _ events.EventHandler = (*Recorder)(nil)
