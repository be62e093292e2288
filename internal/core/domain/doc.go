// Package domain contains the core types of the synchronisation engine:
// sources, sync items and the error taxonomy shared by connectors, the
// upload pipeline and the orchestrator. It has no dependencies on adapters
// or external services.
package domain
