// Package notifications delivers run events to operators.
//
// PushPlus is the primary transport, with ntfy as an alternative. When neither
// is configured the service degrades to a no-op. Each event type can be
// switched off in config.toml; test notifications are always sent.
//
// Workflow code depends only on the Service interface and publishes an Event
// with a loosely typed Payload. Formatting into titles and markdown bodies
// happens here.
package notifications
