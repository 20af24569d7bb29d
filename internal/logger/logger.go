package logger

import "go.uber.org/zap"

// New returns a development logger for env "development" and a JSON production logger otherwise.
func New(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
