// Package items is the local entity store of the buffer.
//
// # Overview
//
// Every entity type owns one logical collection, keyed by the list name of
// its schema descriptor. Entities are stored as JSON documents next to their
// current identifier and the buffer identifier they were created with.
//
// # Identifiers
//
// Insert assigns the next buffer identifier:
//
//	next = min(min id, min buffer id, 0) - 1
//
// so locally created entities get strictly negative, pairwise distinct and
// decreasing ids. Once the remote accepts an entity its row is moved to the
// server-assigned id; the buffer id stays on the row so that a lookup of the
// old negative id still resolves (FindByID falls back to buffer_id).
//
// # Concurrency
//
// The repository performs no locking of its own. Callers serialize writes
// (the buffer holds the outbox lock around every local write) and open the
// database with a single connection.
package items
