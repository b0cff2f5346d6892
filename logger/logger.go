package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teranos/ilsp/errors"
)

var (
	// Global logger instance
	Logger *zap.SugaredLogger
	// Flag to track if JSON output is enabled
	JSONOutput bool

	// closer releases the log file opened by Initialize, if any
	closer io.Closer
)

func init() {
	// Initialize with a safe no-op logger at package load time
	// This prevents nil pointer panics if logger is used before Initialize() is called
	Logger = zap.NewNop().Sugar()
}

// Options selects the sink, encoding and level of the global logger.
type Options struct {
	// JSON selects the production JSON encoder instead of the console encoder
	JSON bool
	// Verbosity is the -v flag count, see VerbosityToLevel
	Verbosity int
	// File is an optional log file path. Empty means stderr.
	// stdout is never used: in stdio mode it carries the LSP stream.
	File string
}

// Initialize sets up the global logger
func Initialize(opts Options) error {
	sink, file, err := openSink(opts.File)
	if err != nil {
		return err
	}

	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, sink, VerbosityToLevel(opts.Verbosity))

	Cleanup()
	if file != nil {
		closer = file
	}
	JSONOutput = opts.JSON
	Logger = zap.New(core).Sugar()
	return nil
}

// openSink resolves the write target for log output
func openSink(path string) (zapcore.WriteSyncer, io.Closer, error) {
	if path == "" {
		return zapcore.Lock(os.Stderr), nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open log file %s", path)
	}
	return zapcore.Lock(f), f, nil
}

// Cleanup flushes any buffered log entries and closes the log file
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
}

// Infow logs an info message with structured fields
func Infow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, keysAndValues...)
	}
}

// Errorw logs an error message with structured fields
func Errorw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Errorw(msg, keysAndValues...)
	}
}

// Warnw logs a warning message with structured fields
func Warnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Warnw(msg, keysAndValues...)
	}
}

// Debugw logs a debug message with structured fields
func Debugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Debugw(msg, keysAndValues...)
	}
}
