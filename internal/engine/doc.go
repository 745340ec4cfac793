// Package engine is the audit orchestrator. It runs the registered checkers
// and testers, converts plugin failures into visible findings, and merges the
// collected output into a deduplicated, severity-ordered AuditReport. This
// package is internal; external consumers should use the facade in pkg/core.
package engine
