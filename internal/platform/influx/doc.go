// Package influx records task lifecycle events as InfluxDB points.
//
// The Recorder is an events.EventHandler: register it with the event
// emitter and every created, completed and failed transition becomes a
// "media_task" point tagged by media type and event.
package influx
