// Package s3 provides the Amazon S3 implementation of blobstore.Store,
// plus a DynamoDB-backed publisher for committing manifest snapshots
// atomically.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "noaa-gefs-pds", "")
//
// # Features
//
//   - Range reads, so GRIB messages are fetched without whole files
//   - Delimiter listings for discovering model runs
//   - Automatic pagination
//   - Multipart snapshot uploads via the s3 transfer manager
package s3
