package logger_test

import (
	"errors"

	"github.com/wonny/frontier/pkg/config"
	"github.com/wonny/frontier/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	log := logger.New(&config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	})

	log.Info("pipeline started")
	log.WithFields(map[string]interface{}{
		"period": "202401",
		"stage":  "optimization",
	}).Info("stage completed")
	log.WithError(errors.New("singular matrix")).Warn("strategy failed")
}
