package breaker

import "go.uber.org/zap"

// Logging retorna un listener que loguea cada transición.
func Logging(log *zap.Logger) StateChangeFunc {
	return func(name string, from, to State) {
		fields := []zap.Field{
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		}
		if to == Open {
			log.Warn("breaker opened", fields...)
			return
		}
		log.Info("breaker state changed", fields...)
	}
}
