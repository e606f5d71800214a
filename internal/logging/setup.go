package logging

import (
	"os"
	"sync"
	"time"

	"github.com/yeshanjun/pollux/internal/config"
	log "github.com/sirupsen/logrus"
)

var logMux sync.Mutex

// Setup configures the global logrus logger using runtime configuration.
// It is idempotent and can be called multiple times; the most recent call wins.
func Setup(cfg *config.Config) error {
	logMux.Lock()
	defer logMux.Unlock()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	var formatter log.Formatter = &log.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	if level == log.DebugLevel {
		formatter = &log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339Nano}
	}
	log.SetFormatter(formatter)
	log.SetOutput(os.Stdout)
	return nil
}
