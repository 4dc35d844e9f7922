package logger

import "go.uber.org/zap"

// New builds a zap logger appropriate for the given environment.
func New(env string) *zap.Logger {
	if env == "development" {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}
