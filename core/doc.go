// Package core provides the foundational domain types and interfaces shared
// by the Atlas orchestration layers. It defines:
//
//   - Context (run-scoped key/value environment with template resolution)
//   - Agent / Outcome (the reason-and-act contract every variant implements)
//   - Registry (capability domain to agent dispatch table)
//   - The error taxonomy surfaced by workflow runs and routing
//
// The package intentionally keeps implementation concerns (concrete agents,
// workflow interpretation, model providers) out of scope, exposing small
// interfaces so higher layers stay decoupled.
package core
