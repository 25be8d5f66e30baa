package metrics

import "time"

// ResultLabel enumerates repository operation outcomes.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultInvalid  ResultLabel = "invalid"
	ResultNotFound ResultLabel = "not_found"
	ResultConflict ResultLabel = "conflict"
	ResultError    ResultLabel = "error"
)

// Recorder receives repository observations. NoopRecorder is used when
// metrics are not wired.
type Recorder interface {
	ObserveScanDuration(d time.Duration)
	SetPostsTotal(n int)
	IncSkippedFile(reason string)
	IncOperation(op string, result ResultLabel)
	ObserveCacheWrite(d time.Duration)
}

type NoopRecorder struct{}

func (NoopRecorder) ObserveScanDuration(time.Duration) {}
func (NoopRecorder) SetPostsTotal(int) {}
func (NoopRecorder) IncSkippedFile(string) {}
func (NoopRecorder) IncOperation(string, ResultLabel) {}
func (NoopRecorder) ObserveCacheWrite(time.Duration) {}
