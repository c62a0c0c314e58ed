// Package reconcile mirrors catalog records to a remote backup.
//
// Each record becomes up to four objects under "<container>/<id>/", where
// the container is named for the record kind:
//
//	record.json    scalar columns, as stored in the catalog
//	metadata.json  capture-time metadata
//	custody.json   custody chain
//	file           raw artifact bytes, when the record has a file
//
// Delivery is at-least-once and non-transactional. An upload works on a
// snapshot of the record taken when it is enqueued, runs as a single attempt
// and is not canceled with the caller's context. The reconciler never
// mutates records: on success the caller appends the "synced" custody event.
package reconcile
