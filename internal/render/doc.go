// Package render draws deck pages onto a hardware driver, resolving
// control labels from configuration and live entity state.
package render
