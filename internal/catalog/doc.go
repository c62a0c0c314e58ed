// Package catalog is the encrypted local store for forensic records.
//
// The catalog is a SQLite database with one table per record kind:
//   - screen_recordings, videos, photos, audio_recordings, screenshots,
//     ai_chat_logs, documents
//
// Every table shares the columns id, created_at, modified_at,
// device_identifier, checksum_sha256, file_url, file_size, metadata_json and
// custody_json, adds its kind-specific scalar columns, and carries a
// descending index on created_at for reverse-chronological listing.
//
// # Key binding
//
// Open requires the externally supplied 256-bit key before anything else
// happens; without it no file is touched. Subkeys derived with HKDF seal a
// key-check value inside the database, the self-check reference written next
// to it, and exported bundles.
//
// # Database Configuration
//
//   - WAL mode: readers never block the writer and vice versa
//   - One writer connection: all mutations are serialized through it
//   - Read-only pool: listing and fetching run against the WAL snapshot
//   - synchronous=FULL: a committed record survives power loss
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - An exclusive file lock keeps other processes from opening a second
//     writer session on the same catalog
//
// # Mutation rules
//
// Save inserts a record once; re-saving identical evidence is a no-op and
// re-saving different evidence under the same id is rejected. The only later
// mutation is ExtendCustody, which must strictly extend the stored chain.
// Mutations to a given id are serialized by a per-id lock. Reads never
// recompute or repair stored checksums.
package catalog
