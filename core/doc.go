// Package core provides the foundational domain types shared by every
// agentcrew package:
//
//   - Message / ToolCall (one conversation entry and a tool invocation request)
//   - Log (the ordered, append-only conversation record and its invariants)
//   - ToolContext (scoped execution surface handed to tool implementations)
//   - TurnBudget (optional bound on model turns per run)
//   - CheckpointStore (keyed persistence of a session's Log)
//
// Concrete agents, tools, models and store backends live in their own
// packages and depend on these small types and interfaces only.
package core
