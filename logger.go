package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func newLogger(cfg LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.Warnf("invalid log level %q, using info", cfg.Level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
