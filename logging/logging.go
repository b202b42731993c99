// Package logging sets up logrus for the cytomat tools and adapts it to the
// engine's Logger interface.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/moffa90/go-cytomat/cytomat"
)

const timestampFormat = "2006-01-02 15:04:05"

// Config selects level, format and destination of the log output.
type Config struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// DefaultConfig logs text at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text", Output: "stderr"}
}

// Setup builds a logger from cfg. An unknown level falls back to info and a
// log file that cannot be opened falls back to stderr with a warning.
func Setup(cfg Config) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	switch cfg.Output {
	case "stdout":
		log.SetOutput(os.Stdout)
	case "file":
		if cfg.FilePath == "" {
			log.Warn("log output is file but no file_path set, using stderr")
			break
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Warnf("open log file: %v, using stderr", err)
			break
		}
		log.SetOutput(file)
	default:
		log.SetOutput(os.Stderr)
	}

	return log
}

// Adapter implements cytomat.Logger on top of a logrus logger or entry.
type Adapter struct {
	log logrus.FieldLogger
}

var _ cytomat.Logger = (*Adapter)(nil)

// NewLogrus adapts log for use with cytomat.WithLogger.
func NewLogrus(log logrus.FieldLogger) *Adapter {
	return &Adapter{log: log}
}

func (a *Adapter) Debug(msg string, keysAndValues ...interface{}) {
	a.log.WithFields(Fields(keysAndValues...)).Debug(msg)
}

func (a *Adapter) Info(msg string, keysAndValues ...interface{}) {
	a.log.WithFields(Fields(keysAndValues...)).Info(msg)
}

func (a *Adapter) Error(msg string, keysAndValues ...interface{}) {
	a.log.WithFields(Fields(keysAndValues...)).Error(msg)
}

// Fields turns alternating keys and values into logrus fields. Keys that
// are not strings are formatted with %v; a trailing key without a value is
// logged under "extra".
func Fields(keysAndValues ...interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 == len(keysAndValues) {
			fields["extra"] = keysAndValues[i]
			break
		}
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
