// Package backup is the remote backup collaborator the reconciler mirrors
// records to.
//
// A Store holds opaque objects addressed by container and key. Containers
// are named for record kinds; keys are "<record id>/<document>". Three
// backends are provided:
//
//   - MinioStore: any S3 compatible object store via minio-go. Containers
//     become key prefixes inside one bucket.
//   - DirStore: a directory tree, for mirroring to a mounted volume.
//   - MemoryStore: in-process, with failure injection for tests.
package backup
