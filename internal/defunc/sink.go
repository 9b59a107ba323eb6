package defunc

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/teemow/defunc/internal/logging"
)

// Sink accepts formatted trace lines.
type Sink interface {
	WriteLine(line string) error
}

// WriterSink writes one line per call to an io.Writer. Writes are serialized.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// WriteLine writes line followed by a newline.
func (s *WriterSink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	_, err := io.WriteString(s.w, line)
	return err
}

var (
	stdoutOnce sync.Once
	stdoutSink *WriterSink
)

// Stdout returns the process-wide sink writing to standard output.
func Stdout() Sink {
	stdoutOnce.Do(func() {
		stdoutSink = NewWriterSink(os.Stdout)
	})
	return stdoutSink
}

// SlogSink forwards trace lines to a structured logger.
type SlogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogSink returns a sink logging each line at info level. A nil logger uses slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger, level: slog.LevelInfo}
}

// WithLevel returns a copy of the sink logging at level.
func (s *SlogSink) WithLevel(level slog.Level) *SlogSink {
	return &SlogSink{logger: s.logger, level: level}
}

// WriteLine logs the line under the "line" attribute.
func (s *SlogSink) WriteLine(line string) error {
	s.logger.Log(context.Background(), s.level, "trace", slog.String(logging.KeyLine, line))
	return nil
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(line string) error

// WriteLine calls f(line).
func (f SinkFunc) WriteLine(line string) error {
	return f(line)
}
