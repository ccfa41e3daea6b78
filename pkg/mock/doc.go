// Package mock holds the configuration model of the Atlantis mock server:
// the template catalog, the default response headers and behavior settings,
// the request-to-template matching contract with its built-in filter, and
// the JSON/YAML codec for the configuration file format.
//
// The entities in this package are plain mutable aggregates and are not
// safe for concurrent use. The serving layer (pkg/serve) guards a shared
// Configuration with a read/write lock: matching is read-only and frequent,
// catalog mutation is rare.
package mock
