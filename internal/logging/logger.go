// Package logging centralizes logrus setup for every binary in this
// module (mp, fs, and the transfer proxy server).
package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// InitFromEnv sets the log level from the LOG_LEVEL environment variable
// (trace/debug/info/warn, defaulting to error) and a timestamped text
// formatter.
func InitFromEnv() {
	setLogLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// SetLevel sets the log level explicitly, used when a level is supplied via
// a config file rather than the environment.
func SetLevel(level string) {
	setLogLevel(strings.ToLower(level))
}

// WithComponent returns an entry carrying a "component" field, the
// convention every package in this module logs through.
func WithComponent(name string) *log.Entry {
	return log.WithField("component", name)
}

func setLogLevel(logLevel string) {
	switch logLevel {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.ErrorLevel)
	}
}

func init() {
	InitFromEnv()
}
