// Package logging wraps zap behind logr, the way dc4eu-vc/pkg/logger
// does it, so every NearClip component logs through one small
// interface regardless of which sink is wired underneath.
package logging

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the logger handle passed to every component constructor.
type Log struct {
	logr.Logger
}

// New builds a production or development logger, optionally writing
// to logPath/<name>.log in addition to stderr.
func New(name, logPath string, production bool) (*Log, error) {
	var zc zap.Config
	if production {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc.DisableCaller = true
	zc.DisableStacktrace = true

	if logPath != "" {
		if err := os.MkdirAll(logPath, fs.ModeDir); err != nil {
			return nil, err
		}
		zc.OutputPaths = append(zc.OutputPaths, filepath.Join(logPath, fmt.Sprintf("%s.log", name)))
	}

	z, err := zc.Build()
	if err != nil {
		return nil, err
	}

	return &Log{Logger: zapr.NewLogger(z).WithName(name)}, nil
}

// NewSimple builds a development-mode logger for tests and CLI tools
// that don't need file output.
func NewSimple(name string) *Log {
	z, err := zap.NewDevelopment()
	if err != nil {
		return Noop()
	}
	return &Log{Logger: zapr.NewLogger(z.Named(name))}
}

// Noop returns a logger that discards everything, used as the
// zero-value default when a component is constructed without one.
func Noop() *Log {
	return &Log{Logger: logr.Discard()}
}

// New returns a named child logger.
func (l *Log) New(name string) *Log {
	if l == nil {
		return Noop()
	}
	return &Log{Logger: l.WithName(name)}
}

// Info logs at the default verbosity.
func (l *Log) Info(msg string, kv ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.V(0).WithValues(kv...).Info(msg)
}

// Debug logs at verbosity 1.
func (l *Log) Debug(msg string, kv ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.V(1).WithValues(kv...).Info(msg)
}

// Error logs an error with context.
func (l *Log) Error(err error, msg string, kv ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.WithValues(kv...).Error(err, msg)
}
