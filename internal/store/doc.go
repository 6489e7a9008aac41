// Package store provides SQLite-backed storage for secondary indexes.
//
// The store is both sides of an index:
//   - Write side: single- and multi-column operations that change
//     listeners call while a change set is applied. One change set is one
//     transaction, begun in Start and committed in End.
//   - Read side: an index.Provider that estimates cardinality with COUNT
//     queries and serves matching node keys in batches.
//
// # Critical Patterns
//
// Deterministic results
//   - Every node query orders by node_key COLLATE BINARY
//   - Batches page by key (node_key > last) rather than by OFFSET, so a
//     cursor never skips or repeats a node
//
// Canonical values
//   - Values are stored in the canonical text form of the column's type,
//     so '+3' and '3' index identically
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - case_sensitive_like=ON: LIKE matches case, as query LIKE does
package store
