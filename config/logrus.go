package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

// SetLogger swaps the global logger (tests capture output through it).
func SetLogger(l *logrus.Logger) {
	if l != nil {
		logg = l
	}
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	logger.WithFields(logFields(moduleName, funcName, context, data)).Error(err.Error())
}

// LogWarning records a recoverable condition (stock underflow, balance drift) for operator review.
func LogWarning(logger *logrus.Logger, moduleName string, funcName string, context string, data any, msg string) {
	logger.WithFields(logFields(moduleName, funcName, context, data)).Warn(msg)
}

func logFields(moduleName string, funcName string, context string, data any) logrus.Fields {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	return fields
}
