// Package evidence wires the record factory, custody ledger, catalog and
// reconciler into the user-level operations: capture, view, verify, export
// and sync.
//
// Every operation that touches a stored record records itself as a custody
// event through the catalog, which serializes mutations per record id.
// Evidentiary fields are never changed after capture.
package evidence
