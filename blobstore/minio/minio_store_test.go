package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmolab/gribdex/blobstore"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-gribdex"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		require.NoError(t, err)
	}

	store := NewStore(client, bucket, "test-prefix/")

	sidecar := []byte("1:0:d=2017010100:HGT:10 mb:anl:ENS=low-res ctl\n" +
		"2:50487:d=2017010100:TMP:2 m above ground:anl:ENS=low-res ctl\n")

	err = store.Put(ctx, "gefs.20170101/00/gec00.t00z.pgrb2aanl.idx", sidecar)
	require.NoError(t, err)

	// Open and whole read
	blob, err := store.Open(ctx, "gefs.20170101/00/gec00.t00z.pgrb2aanl.idx")
	require.NoError(t, err)
	require.Equal(t, int64(len(sidecar)), blob.Size())

	buf := make([]byte, len(sidecar))
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(sidecar), n)
	require.Equal(t, sidecar, buf)

	// Ranged read
	part := make([]byte, 3)
	_, err = blob.ReadAt(ctx, part, 17)
	require.NoError(t, err)
	assert.Equal(t, "HGT", string(part))
	require.NoError(t, blob.Close())

	// Missing object
	_, err = store.Open(ctx, "gefs.20170101/00/missing.idx")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	// List and ListPrefixes
	names, err := store.List(ctx, "gefs.20170101/")
	require.NoError(t, err)
	assert.Contains(t, names, "gefs.20170101/00/gec00.t00z.pgrb2aanl.idx")

	prefixes, err := store.ListPrefixes(ctx, "gefs.20170101/")
	require.NoError(t, err)
	assert.Contains(t, prefixes, "gefs.20170101/00/")

	// Cleanup
	_ = client.RemoveObject(ctx, bucket, "test-prefix/gefs.20170101/00/gec00.t00z.pgrb2aanl.idx", minio.RemoveObjectOptions{})
}
