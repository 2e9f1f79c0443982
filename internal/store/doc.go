// Package store implements the session and event store for guest
// conversations and voice-call diagnostics.
//
// Records live in a single DynamoDB table: conversation and voice
// diagnostics records share a per-property partition, while each session id
// owns a partition holding its durable pointer record and any minimal
// fallback records. A process-local cache in front of the pointer records
// keeps steady-state session resolution off the scan path; correctness never
// depends on the cache being warm.
//
// Append paths are self-healing. A message, event, transcript, or
// configuration write for a record that cannot be located creates a
// default-populated record (or a minimal fallback record carrying the
// triggering data) rather than failing, so out-of-order delivery during
// session creation never drops data.
package store
