// Package config loads and validates hadeck's configuration.
//
// Two YAML documents are consumed:
//
//   - the runtime config (connection, logging, optional integrations),
//     loaded by Load with defaults and HADECK_* environment overrides;
//   - the page layout (pages, buttons, dials), loaded by LoadLayout into
//     the deck package's already-validated object graph.
//
// The deck core never parses YAML itself; it only ever sees the object
// graph this package hands it.
package config
