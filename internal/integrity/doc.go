// Package integrity computes and re-verifies SHA-256 content checksums for
// evidentiary artifacts.
//
// A checksum is the lowercase hex SHA-256 digest of the complete file content.
// Verification recomputes the digest from the file's current bytes and compares
// it to the digest stored at capture time. The stored digest is never repaired
// or overwritten by this package.
package integrity
