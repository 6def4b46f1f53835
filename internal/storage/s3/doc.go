/*
Package s3 implements the archivestore driver's AWS S3 binding: object
get/put/delete/head, a pooled client manager, multipart upload for large
objects, and error classification into the structured taxonomy in
pkg/errors.

# Architecture

	Backend
	  -> ConnectionPool (*s3.Client)
	  -> ClientManager (standard + Transfer-Accelerated clients)

Backend is the entry point used by internal/driver/archivestore. It owns a
ConnectionPool of AWS SDK v2 clients, checks objects in and out for each
operation, and classifies SDK errors via translateError into
pkg/errors.Error values the rest of the tree understands.

# Configuration

	config := &s3.Config{
		Region:         "us-west-2",
		PoolSize:       8,
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,

		MultipartThreshold:   32 * 1024 * 1024,
		MultipartChunkSize:   16 * 1024 * 1024,
		MultipartConcurrency: 8,
	}

# Multipart upload

Objects larger than Config.MultipartThreshold are split into parts sized by
GetOptimalChunkSize, which scales the part size up in steps for larger
objects, to at most 8x the base chunk size. MultipartStateManager records
each in-progress upload's part status by upload ID; parts are not retried,
and any part failure aborts the whole upload.

	backend, err := s3.NewBackend(ctx, "my-bucket", config)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	err = backend.PutObject(ctx, "data/file.bin", data)
	data, err := backend.GetObject(ctx, "data/file.bin", 0, -1)
	info, err := backend.HeadObject(ctx, "data/file.bin")

# Transfer Acceleration

When Config.UseAccelerate is set, ClientManager maintains both an
accelerated and a standard client and can fall back between them at runtime
via DisableAcceleration/EnableAcceleration without tearing down the pool.

# Error classification

translateError maps AWS SDK v2 error types (via smithy-go's error
interfaces) onto pkg/errors categories: NoSuchKey/NoSuchBucket become
Permanent I/O, throttling and 5xx responses become Transient I/O, and
anything unrecognized falls back to Fatal so it surfaces rather than
retries silently.

# Thread safety

All Backend methods are safe for concurrent use; the connection pool and
metrics collector guard their own state. ClientManager holds no lock:
DisableAcceleration and EnableAcceleration replace its client without
synchronization, so they are not safe to call concurrently with its other
methods.
*/
package s3
