package logx

import "time"

// Fields is a map of structured log fields
type Fields map[string]interface{}

// LogEntry is a single record on its way to the output
type LogEntry struct {
	Level     Level
	Message   string
	Fields    Fields
	Error     error
	Caller    string
	Timestamp time.Time
}

// Formatter renders a log entry to bytes
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}
