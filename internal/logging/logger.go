package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevelEnv overrides the default level when no --log-level flag is given.
const LogLevelEnv = "ATTACK_TIMING_LOG_LEVEL"

var logger *logrus.Logger

func init() {
	logger = logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(newTextFormatter())
	logger.SetLevel(logrus.InfoLevel)
}

func newTextFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
	}
}

func GetLogger() *logrus.Logger {
	return logger
}

func SetLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(logLevel)
	return nil
}

// SetLogLevelFromEnv applies LogLevelEnv if it is set. An unparsable value is
// reported and the current level is kept.
func SetLogLevelFromEnv() {
	level := os.Getenv(LogLevelEnv)
	if level == "" {
		return
	}
	if err := SetLogLevel(level); err != nil {
		logger.WithField("env", LogLevelEnv).WithError(err).Warn("Ignoring invalid log level")
	}
}

func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func SetFormatter(formatter logrus.Formatter) {
	logger.SetFormatter(formatter)
}

// SetLogFormat switches between the "text" and "json" formatters.
func SetLogFormat(format string) error {
	switch format {
	case "text":
		SetFormatter(newTextFormatter())
	case "json":
		SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	return nil
}
