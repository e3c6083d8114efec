// Package sqlitekv provides a namespaced key-value store on top of SQLite.
//
// Each namespace maps to its own table, created lazily on first use, with
// a compiled statement set cached per namespace. Every operation is funneled
// through a single serial lane per store instance, so no two operation
// bodies ever run concurrently against the same connection:
//   - Invocations: Store methods acquire the lane, run, and return
//   - Composition: WithAccess admits a body once and hands it an Access
//     token; Access methods assume the lane is already held, which lets
//     several operations execute as one atomic unit without re-entering
//     the lane (reentrant calls would otherwise deadlock)
//
// # Critical Patterns
//
// CP-1: Single Serial Lane
//   - One worker goroutine per store, FIFO job queue
//   - Callers block synchronously until their body has run
//
// CP-2: Lazy Namespace Provisioning
//   - First touch of a namespace issues idempotent DDL and compiles its
//     statement set; cache hits never touch DDL
//
// CP-3: Explicit Statement Finalization
//   - Statement handles are connection-scoped; they are closed eagerly on
//     namespace drop and before the connection is released at Close
//
// CP-4: Expiry Boundary Asymmetry (Cache variant)
//   - Reads exclude rows with expires_at <= now (exclusive bound)
//   - Prune deletes rows with expires_at <= now (inclusive bound)
//   - A row at exactly its expiry instant is invisible to readers and
//     eligible for deletion
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL by default: balance durability/performance
//   - busy_timeout: bound on engine-level lock contention from another
//     OS process; the only timeout at any layer
//
// Values are opaque byte payloads. JSON adapters (SetJSON/GetJSON) layer
// typed access over the byte store.
package sqlitekv
