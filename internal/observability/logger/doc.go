// Package logger expone el logger zap del proceso con scoping por contexto.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init() desde cmd/edgeflix.
//   - Los componentes del engine (dispatcher, pipeline, cache) reciben un *zap.Logger
//     nombrado en su constructor; From(ctx) queda para handlers HTTP y middlewares.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON, "test" descarta todo.
//
// # Usage
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.Named("dispatch")
//	log.Info("dispatched", logger.Kind("user_service"), logger.RequestID(id))
package logger
