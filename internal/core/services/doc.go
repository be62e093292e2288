// Package services implements the engine's core behaviour: the connector
// registry, the deduplicating upload pipeline and the orchestrator that
// drives the polling loop. Services talk to infrastructure only through
// the driven ports.
package services
