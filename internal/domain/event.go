package domain

// Stage is one progress report from a generator.
//
// Text generators fill Text with the content produced so far; WordCount and
// TotalWords are set when the generator knows them.
type Stage struct {
	Name       string `json:"stage,omitempty"`
	Progress   int    `json:"progress"`
	Message    string `json:"message,omitempty"`
	Result     string `json:"result_data,omitempty"`
	StreamRef  string `json:"stream_url,omitempty"`
	Text       string `json:"text,omitempty"`
	WordCount  int    `json:"word_count,omitempty"`
	TotalWords int    `json:"total_words,omitempty"`
}

// IsFinal reports whether the stage completes its task.
func (s Stage) IsFinal() bool {
	return s.Progress == MaxProgress
}

// EventType names a message pushed to connected clients.
type EventType string

// Event types
const (
	EventProgressUpdate          EventType = "progress_update"
	EventTextStream              EventType = "text_stream"
	EventTaskFailed              EventType = "task_failed"
	EventTaskCreated             EventType = "task_created"
	EventTaskFinished            EventType = "task_finished"
	EventSubscriptionConfirmed   EventType = "subscription_confirmed"
	EventUnsubscriptionConfirmed EventType = "unsubscription_confirmed"
	EventError                   EventType = "error"
)

// Event is the envelope of every pushed message.
type Event struct {
	TaskID string    `json:"task_id,omitempty"`
	Type   EventType `json:"type"`
	Data   any       `json:"data,omitempty"`
}

// FailureData is the payload of an EventTaskFailed event.
type FailureData struct {
	Progress int    `json:"progress"`
	Error    string `json:"error"`
}

// StatusData is the payload of task announcements sent to every connection.
type StatusData struct {
	MediaKind MediaKind  `json:"media_type"`
	Status    TaskStatus `json:"status"`
}

// NewStageEvent wraps a stage for delivery to the task's subscribers.
// Stages carrying streamed text are sent as text_stream events.
func NewStageEvent(taskID string, stage Stage) Event {
	eventType := EventProgressUpdate
	if stage.Text != "" {
		eventType = EventTextStream
	}
	return Event{TaskID: taskID, Type: eventType, Data: stage}
}

// NewFailureEvent reports a task failure to its subscribers.
func NewFailureEvent(task Task) Event {
	return Event{
		TaskID: task.ID,
		Type:   EventTaskFailed,
		Data:   FailureData{Progress: task.Progress, Error: task.Error},
	}
}
