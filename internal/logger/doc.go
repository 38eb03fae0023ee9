// Package logger is the logging core: a process-wide singleton holding
// source/version/threshold configuration, lightweight facades exposing one
// method per severity, and the async pipeline that persists every record to
// the log store.
//
// Console output is gated by the configured threshold; persistence is not.
// Every call is enqueued for storage regardless of console suppression, so
// the store keeps full history while the console stays quiet.
//
// Init must run once at service start. Requesting a facade before Init is a
// usage error and panics; that is deliberate, so a wiring mistake fails
// loudly instead of dropping logs.
package logger
