// Package driven defines the interfaces the core services require from
// infrastructure: connectors, the persisted source store, the destination
// knowledge base and configuration. These are the "driven" ports in
// hexagonal architecture terminology; implementations live under
// internal/connectors and internal/adapters/driven.
package driven
