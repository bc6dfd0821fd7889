package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

/* Public */

// Init configures the global logrus instance: console output plus a
// rotating log file. Verbosity counts map to info (0), debug (1) and
// trace (2+).
func Init(verbosity int, logFilePath string) error {
	switch {
	case verbosity == 1:
		logrus.SetLevel(logrus.DebugLevel)
	case verbosity > 1:
		logrus.SetLevel(logrus.TraceLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceFormatting: true,
	})

	if logFilePath == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
		return err
	}

	fileLog := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     30,
	}

	logrus.SetOutput(io.MultiWriter(os.Stderr, fileLog))
	return nil
}

// GetLogger returns a component-scoped log entry.
func GetLogger(prefix string) *logrus.Entry {
	return logrus.WithField("prefix", prefix)
}
