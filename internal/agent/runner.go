package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// ExecRunner runs processes on the local host, streaming stdout and stderr
// to the context logger line by line
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	logger := zerolog.Ctx(ctx)

	stdout := &logWriter{logger: logger, level: zerolog.InfoLevel, stream: "stdout"}
	stderr := &logWriter{logger: logger, level: zerolog.WarnLevel, stream: "stderr"}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	stdout.Flush()
	stderr.Flush()
	if err != nil {
		return fmt.Errorf("%s exited: %w", name, err)
	}
	return nil
}

// logWriter emits one log entry per line. A line split across writes is
// held until its newline arrives or Flush is called.
type logWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
	stream string
	tail   []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	data := append(w.tail, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		w.emit(data[:i])
		data = data[i+1:]
	}
	w.tail = append(w.tail[:0:0], data...)
	return len(p), nil
}

// Flush logs any unterminated output
func (w *logWriter) Flush() {
	w.emit(w.tail)
	w.tail = nil
}

func (w *logWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	w.logger.WithLevel(w.level).Str("stream", w.stream).Msg(string(line))
}
