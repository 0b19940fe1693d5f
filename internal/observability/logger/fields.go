package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración de una operación.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - DISPATCH
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Kind crea un campo para el service kind despachado.
func Kind(v string) zap.Field {
	return zap.String("service_kind", v)
}

// Code crea un campo para el código de resultado de un Response.
func Code(v string) zap.Field {
	return zap.String("code", v)
}

// Breaker crea un campo con el nombre del call-site protegido.
func Breaker(v string) zap.Field {
	return zap.String("breaker", v)
}

// Zone crea un campo para el ID de zona.
func Zone(v string) zap.Field {
	return zap.String("zone_id", v)
}

// Instance crea un campo para el ID de instancia.
func Instance(v string) zap.Field {
	return zap.String("instance_id", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - PIPELINE
// =================================================================================

// MovieID crea un campo para el ID de la película en onboarding.
func MovieID(v string) zap.Field {
	return zap.String("movie_id", v)
}

// Stage crea un campo para la etapa del pipeline.
func Stage(v string) zap.Field {
	return zap.String("stage", v)
}

// Replica crea un campo "format/resolution" de una réplica.
func Replica(format, resolution string) zap.Field {
	return zap.String("replica", format+"/"+resolution)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Key crea un campo genérico para una clave de cache.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
