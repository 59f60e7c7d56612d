package logx

import (
	"bytes"
	"fmt"
	"sort"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

// ConsoleFormatter renders human-readable, optionally colored lines.
type ConsoleFormatter struct {
	config *Config
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(config *Config) *ConsoleFormatter {
	return &ConsoleFormatter{config: config}
}

// Format formats a log entry for the console
func (f *ConsoleFormatter) Format(entry *LogEntry) ([]byte, error) {
	var buf bytes.Buffer

	if f.config.EnableTimestamp {
		buf.WriteString(entry.Timestamp.Format(f.config.TimeFormat))
		buf.WriteByte(' ')
	}

	level := entry.Level.String()
	if f.config.EnableColors {
		buf.WriteString(f.levelColor(entry.Level))
		fmt.Fprintf(&buf, "%-5s", level)
		buf.WriteString(colorReset)
	} else {
		fmt.Fprintf(&buf, "%-5s", level)
	}
	buf.WriteByte(' ')

	if f.config.EnableCaller && entry.Caller != "" {
		fmt.Fprintf(&buf, "%s ", entry.Caller)
	}

	buf.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&buf, " %s=%v", k, entry.Fields[k])
		}
	}

	if entry.Error != nil {
		fmt.Fprintf(&buf, " error=%q", entry.Error.Error())
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (f *ConsoleFormatter) levelColor(level Level) string {
	switch level {
	case LevelDebug:
		return colorGray
	case LevelInfo:
		return colorBlue
	case LevelWarn:
		return colorYellow
	case LevelError, LevelFatal:
		return colorRed
	default:
		return colorReset
	}
}
