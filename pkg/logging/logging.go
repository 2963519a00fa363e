// Package logging holds the structured logger shared by the transfer clients.
package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.RWMutex
	logger = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

// Logger returns the current logger.
func Logger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the logger. A nil logger restores the default.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = newDefault()
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// SetLevel changes the level of the current logger.
func SetLevel(level logrus.Level) {
	Logger().SetLevel(level)
}

// WithProtocol returns an entry tagged with the protocol name.
func WithProtocol(protocol string) *logrus.Entry {
	return Logger().WithField("protocol", protocol)
}
