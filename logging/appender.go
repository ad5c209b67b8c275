package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
)

// Appender receives every log entry written through a Logger. Tests attach their own
// Appender (see NewTestAppender) instead of redirecting stdout.
type Appender interface {
	Write(entry zapcore.Entry, fields []zapcore.Field) error
	Sync() error
}

type stdoutAppender struct {
	encoder zapcore.Encoder
}

// NewStdoutAppender returns an Appender that writes console-formatted lines to stdout.
func NewStdoutAppender() Appender {
	return &stdoutAppender{encoder: zapcore.NewConsoleEncoder(newZapConfig().EncoderConfig)}
}

func (a *stdoutAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := a.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = fmt.Fprint(os.Stdout, buf.String())
	return err
}

func (a *stdoutAppender) Sync() error { return nil }

// coreAppender adapts a zapcore.Core (e.g. zaptest/observer's recording core) into an
// Appender so tests can assert on emitted log lines.
type coreAppender struct {
	core zapcore.Core
}

func (a *coreAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return a.core.Write(entry, fields)
}

func (a *coreAppender) Sync() error { return a.core.Sync() }
