// Package queue implements the gateway's priority request queue: ticket
// lifecycle, effective-priority dispatch ordering with starvation
// prevention, and coalescence of near-duplicate concurrent prompts.
//
// # Effective priority
//
// Lower effective priority dispatches first. It combines nominal priority,
// an age-based starvation bonus, a waiting-time bonus, and a similarity
// bonus (§4.4). Every dispatcher pass recomputes it for every surviving
// ticket, which is what guarantees no ticket starves indefinitely: a
// ticket's starvation bonus strictly increases (up to its cap) on every
// pass it survives.
//
// # Coalescence
//
// Coalescence happens at enqueue time, not at dispatch time. A bounded,
// time-windowed LRU of recently seen prompts is consulted; if a
// sufficiently similar, still-live ticket is found, its completion channel
// is handed to the new caller instead of creating a second ticket. This
// replaces the "soft reference to an in-flight ticket" pattern the
// original implementation relied on the garbage collector for (see
// DESIGN.md): tickets are registered and deregistered from the coalescence
// index explicitly, keyed by a randomly generated (UUID) ticket ID, rather
// than by a weak/GC-reaped handle.
package queue
