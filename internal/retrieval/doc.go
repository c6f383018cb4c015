// Package retrieval implements the fan-out retrieval stage of the
// context-injection pipeline.
//
// # Overview
//
// A Coordinator queries five independent knowledge tiers concurrently and
// merges their scored chunks:
//
//	Coordinator.Retrieve
//	     |
//	     +-- company_profile  (profile record, decomposed + embedded ad hoc)
//	     +-- agent_docs       (pgvector search scoped to the agent)
//	     +-- shared_docs      (pgvector search scoped to the company)
//	     +-- playbooks        (full-text search, primary query only)
//	     +-- keywords         (hybrid keyword search, all queries)
//	     |
//	     v
//	Result (five lists, per-tier counts, timing)
//
// One embedding is generated from the primary query and shared by all
// vector tiers. The five lookups run under an errgroup and are joined
// before merging; there is no early return.
//
// # Failure policy
//
// A tier failure is caught at the tier boundary, logged, and yields an
// empty list. Error and empty success are indistinguishable to callers:
// one tier going down lowers recall but never fails the request. Retrieve
// itself returns an error only for invalid input.
//
// # Determinism
//
// Within a tier, chunks are ordered by descending score (ties broken by
// ID); across tiers the canonical Sources order applies. Repeated calls
// over unchanged data produce identical output.
package retrieval
