// Package domain holds the engine's entities, request shapes, domain events and error codes.
//
// Entities carry bun tags and are persisted as-is. Aggregates that emit events embed
// events.Recorder; the unit of work drains it after a successful save.
package domain
