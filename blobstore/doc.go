// Package blobstore abstracts the object storage a weather archive lives
// in. The indexer only ever reads: sidecar files whole, GRIB files by
// byte range, and bucket listings to discover model runs.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests and fixtures
//   - LocalStore: local filesystem mirror of an archive
//   - s3.Store: Amazon S3 (the NOAA open-data buckets)
//   - minio.Store: MinIO and other S3-compatible endpoints
//
// Implement the Store interface to support other backends.
package blobstore
