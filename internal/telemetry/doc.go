// Package telemetry writes deck activity metrics (dial adjustments,
// state transitions, page views) to InfluxDB, best-effort and batched.
package telemetry
