package server

import "go.uber.org/zap"

// NewLogger builds the process logger: human-readable output in development,
// JSON in production.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
