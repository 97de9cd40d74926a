// Package meta carries request metadata (trace, caller identity, player session) through context.
package meta

import "context"

// ContextKey is a type for keys used in context values for metadata.
type ContextKey string

const (
	// TraceID identifies one logical request across services.
	TraceID ContextKey = "trace_id"

	// RequestID identifies one recommendation request; every item served by it shares the id.
	RequestID ContextKey = "request_id"

	// ActorID is the caller identity supplied by the authentication layer, used for audit.
	ActorID ContextKey = "actor_id"

	// ActorType tells whether the caller is a player session, an admin or a system job.
	ActorType ContextKey = "actor_type"

	// PlayerID is the player the current operation is about.
	PlayerID ContextKey = "player_id"

	// SessionID is the player's game session.
	SessionID ContextKey = "session_id"

	// ExperimentVariant is the A/B variant resolved for the current request.
	ExperimentVariant ContextKey = "experiment_variant"

	// ServiceName identifies the running service.
	ServiceName ContextKey = "service_name"

	// ServiceVersion is the running service version.
	ServiceVersion ContextKey = "service_version"
)

//nolint:gochecknoglobals // fixed key order keeps log fields stable
var allKeys = []ContextKey{
	TraceID,
	RequestID,
	ActorID,
	ActorType,
	PlayerID,
	SessionID,
	ExperimentVariant,
	ServiceName,
	ServiceVersion,
}

// InjectMetaToContext adds the non-empty values of data to ctx.
func InjectMetaToContext(ctx context.Context, data map[ContextKey]string) context.Context {
	for k, v := range data {
		if v != "" {
			ctx = context.WithValue(ctx, k, v) //nolint:fatcontext // finite number of keys
		}
	}
	return ctx
}

// With returns ctx carrying a single metadata value. Empty values leave ctx unchanged.
func With(ctx context.Context, key ContextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

// Get returns the metadata value stored under key, or "".
func Get(ctx context.Context, key ContextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// ExtractMetaFromContext returns every known, non-empty metadata value in ctx.
// Service name and version fall back to the values set with SetServiceInfo.
func ExtractMetaFromContext(ctx context.Context) map[ContextKey]string {
	data := make(map[ContextKey]string)
	for _, k := range allKeys {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			data[k] = v
		}
	}
	if _, ok := data[ServiceName]; !ok && serviceName != "" {
		data[ServiceName] = serviceName
	}
	if _, ok := data[ServiceVersion]; !ok && serviceVersion != "" {
		data[ServiceVersion] = serviceVersion
	}
	return data
}
