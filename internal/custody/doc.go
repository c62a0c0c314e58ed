// Package custody maintains the append-only chain-of-custody ledger attached
// to every forensic record.
//
// A chain always starts with a single "created" event. Further events are
// appended with a timestamp that is never earlier than the previous event's:
// wall-clock skew is absorbed by taking max(now, last). Existing events are
// never removed, reordered or edited; Append returns a new chain and leaves
// its input untouched.
//
// Any action other than "created" may follow any other, so the ledger's state
// machine only enforces forward-in-time append, not a particular sequence.
package custody
