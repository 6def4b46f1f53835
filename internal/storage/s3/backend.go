package s3

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/openarchive/openarchive/pkg/errors"
)

// ObjectInfo describes a single object's metadata as returned by
// HeadObject/ListObjects, standing in for the vendor archive-store's
// own attribute record.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
	Metadata     map[string]string
}

// Backend implements the vendor archive-store's object storage surface on
// top of Amazon S3, used by internal/driver/archivestore to fulfil
// pwrite/pread/fstat against the sink.
type Backend struct {
	client    *s3.Client
	bucket    string
	region    string
	endpoint  string
	pathStyle bool

	pool   *ConnectionPool
	config *Config
	logger *slog.Logger

	multipart *MultipartStateManager
	metrics   *MetricsCollector
}

// NewBackend creates a new S3 backend instance
func NewBackend(ctx context.Context, bucket string, cfg *Config) (*Backend, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}

	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(cfg.MaxRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
		if cfg.UseDualStack {
			o.UseDualstack = true
		}
	})

	pool, err := NewConnectionPool(cfg.PoolSize, func() (*s3.Client, error) {
		return s3.NewFromConfig(awsCfg), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	logger := slog.Default().With("component", "archivestore-s3", "bucket", bucket)

	backend := &Backend{
		client:    client,
		bucket:    bucket,
		region:    cfg.Region,
		endpoint:  cfg.Endpoint,
		pathStyle: cfg.ForcePathStyle,
		pool:      pool,
		config:    cfg,
		logger:    logger,
		multipart: NewMultipartStateManager(),
		metrics:   NewMetricsCollector(),
	}

	if err := backend.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("S3 backend health check failed: %w", err)
	}

	return backend, nil
}

// GetObject retrieves an object, or a byte range of it when size > 0.
func (b *Backend) GetObject(ctx context.Context, key string, offset, size int64) ([]byte, error) {
	start := time.Now()
	defer func() { b.recordMetrics(time.Since(start), false) }()

	var rangeHeader *string
	if offset > 0 || size > 0 {
		if size > 0 {
			rangeHeader = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+size-1))
		} else {
			rangeHeader = aws.String(fmt.Sprintf("bytes=%d-", offset))
		}
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Range:  rangeHeader,
	}

	client := b.pool.Get()
	defer b.pool.Put(client)

	result, err := client.GetObject(ctx, input)
	if err != nil {
		b.recordError(err)
		return nil, b.translateError(err, "GetObject", key)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		b.recordError(err)
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	b.metrics.RecordBytesDownloaded(int64(len(data)))

	return data, nil
}

// PutObject stores an object in S3, driving a multipart upload through
// b.multipart once the object crosses Config.MultipartThreshold.
func (b *Backend) PutObject(ctx context.Context, key string, data []byte) error {
	if b.config.ShouldUseMultipart(int64(len(data))) {
		return b.putObjectMultipart(ctx, key, data)
	}

	start := time.Now()
	defer func() { b.recordMetrics(time.Since(start), false) }()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(b.detectContentType(key)),
		Metadata:      map[string]string{"openarchive-upload": "true"},
	}

	client := b.pool.Get()
	defer b.pool.Put(client)

	if _, err := client.PutObject(ctx, input); err != nil {
		b.recordError(err)
		return b.translateError(err, "PutObject", key)
	}

	b.metrics.RecordBytesUploaded(int64(len(data)))

	return nil
}

// putObjectMultipart splits data into parts sized by GetOptimalChunkSize,
// uploads them with up to Config.MultipartConcurrency in flight, and tracks
// progress through b.multipart so a failed part is visible without
// restarting the whole object. Any part failure aborts the upload on S3
// rather than leaving an incomplete one billing storage indefinitely.
func (b *Backend) putObjectMultipart(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	defer func() { b.recordMetrics(time.Since(start), false) }()

	client := b.pool.Get()
	defer b.pool.Put(client)

	size := int64(len(data))
	chunkSize := b.config.GetOptimalChunkSize(size)
	b.metrics.RecordMultipartUploadStart()

	created, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(b.detectContentType(key)),
		Metadata:    map[string]string{"openarchive-upload": "true"},
	})
	if err != nil {
		b.recordError(err)
		return b.translateError(err, "CreateMultipartUpload", key)
	}
	uploadID := aws.ToString(created.UploadId)

	state := NewMultipartUploadState(uploadID, b.bucket, key, size, chunkSize)
	b.multipart.TrackUpload(state)

	type partResult struct {
		num  int32
		etag string
		err  error
	}

	semaphore := make(chan struct{}, b.config.MultipartConcurrency)
	resultCh := make(chan partResult, state.TotalParts)
	var wg sync.WaitGroup

	for i := 0; i < state.TotalParts; i++ {
		partNum := int32(i + 1)
		offset := int64(i) * chunkSize
		end := offset + chunkSize
		if end > size {
			end = size
		}
		part := data[offset:end]

		wg.Add(1)
		go func(partNum int32, offset int64, part []byte) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			out, err := client.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:        aws.String(b.bucket),
				Key:           aws.String(key),
				UploadId:      aws.String(uploadID),
				PartNumber:    aws.Int32(partNum),
				Body:          bytes.NewReader(part),
				ContentLength: aws.Int64(int64(len(part))),
			})
			if err != nil {
				b.multipart.UpdatePartStatus(uploadID, int(partNum), 0, "", err)
				resultCh <- partResult{num: partNum, err: err}
				return
			}
			etag := aws.ToString(out.ETag)
			b.multipart.UpdatePartStatus(uploadID, int(partNum), int64(len(part)), etag, nil)
			b.metrics.RecordMultipartUploadPart(int64(len(part)))
			resultCh <- partResult{num: partNum, etag: etag}
		}(partNum, offset, part)
	}

	wg.Wait()
	close(resultCh)

	completed := make([]s3types.CompletedPart, 0, state.TotalParts)
	var firstErr error
	for res := range resultCh {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		completed = append(completed, s3types.CompletedPart{
			PartNumber: aws.Int32(res.num),
			ETag:       aws.String(res.etag),
		})
	}

	if firstErr != nil {
		b.multipart.MarkUploadFailed(uploadID)
		b.metrics.RecordMultipartUploadFailed()
		_, _ = client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(b.bucket),
			Key:      aws.String(key),
			UploadId: aws.String(uploadID),
		})
		b.recordError(firstErr)
		return b.translateError(firstErr, "UploadPart", key)
	}

	sort.Slice(completed, func(i, j int) bool {
		return aws.ToInt32(completed[i].PartNumber) < aws.ToInt32(completed[j].PartNumber)
	})

	if _, err := client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{
			Parts: completed,
		},
	}); err != nil {
		b.multipart.MarkUploadFailed(uploadID)
		b.metrics.RecordMultipartUploadFailed()
		b.recordError(err)
		return b.translateError(err, "CompleteMultipartUpload", key)
	}

	b.multipart.MarkUploadCompleted(uploadID)
	b.metrics.RecordMultipartUploadComplete(size, time.Since(start))
	b.metrics.RecordBytesUploaded(size)

	return nil
}

// DeleteObject removes an object from S3
func (b *Backend) DeleteObject(ctx context.Context, key string) error {
	start := time.Now()
	defer func() { b.recordMetrics(time.Since(start), false) }()

	client := b.pool.Get()
	defer b.pool.Put(client)

	input := &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}

	if _, err := client.DeleteObject(ctx, input); err != nil {
		b.recordError(err)
		return b.translateError(err, "DeleteObject", key)
	}

	return nil
}

// HeadObject retrieves metadata about an object
func (b *Backend) HeadObject(ctx context.Context, key string) (*ObjectInfo, error) {
	start := time.Now()
	defer func() { b.recordMetrics(time.Since(start), false) }()

	client := b.pool.Get()
	defer b.pool.Put(client)

	input := &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}

	result, err := client.HeadObject(ctx, input)
	if err != nil {
		b.recordError(err)
		return nil, b.translateError(err, "HeadObject", key)
	}

	info := &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		LastModified: aws.ToTime(result.LastModified),
		ETag:         aws.ToString(result.ETag),
		ContentType:  aws.ToString(result.ContentType),
		Metadata:     make(map[string]string),
	}
	for k, v := range result.Metadata {
		info.Metadata[k] = v
	}

	return info, nil
}

// GetObjects retrieves multiple objects concurrently.
func (b *Backend) GetObjects(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return make(map[string][]byte), nil
	}

	type result struct {
		key  string
		data []byte
		err  error
	}

	resultCh := make(chan result, len(keys))
	semaphore := make(chan struct{}, b.config.PoolSize)

	for _, key := range keys {
		go func(k string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			data, err := b.GetObject(ctx, k, 0, 0)
			resultCh <- result{key: k, data: data, err: err}
		}(key)
	}

	results := make(map[string][]byte, len(keys))
	var firstError error
	for i := 0; i < len(keys); i++ {
		res := <-resultCh
		if res.err != nil {
			if firstError == nil {
				firstError = res.err
			}
			continue
		}
		results[res.key] = res.data
	}

	if firstError != nil && len(results) == 0 {
		return nil, firstError
	}
	return results, nil
}

// PutObjects stores multiple objects concurrently.
func (b *Backend) PutObjects(ctx context.Context, objects map[string][]byte) error {
	if len(objects) == 0 {
		return nil
	}

	type result struct {
		key string
		err error
	}

	resultCh := make(chan result, len(objects))
	semaphore := make(chan struct{}, b.config.PoolSize)

	for key, data := range objects {
		go func(k string, d []byte) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			err := b.PutObject(ctx, k, d)
			resultCh <- result{key: k, err: err}
		}(key, data)
	}

	var failures []string
	for i := 0; i < len(objects); i++ {
		res := <-resultCh
		if res.err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", res.key, res.err))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("batch put failed for %d objects: %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}

// ListObjects lists objects in the bucket with the given prefix
func (b *Backend) ListObjects(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	start := time.Now()
	defer func() { b.recordMetrics(time.Since(start), false) }()

	client := b.pool.Get()
	defer b.pool.Put(client)

	var maxKeys *int32
	if limit > 0 {
		if limit > 0x7FFFFFFF {
			maxKeys = aws.Int32(0x7FFFFFFF)
		} else {
			maxKeys = aws.Int32(int32(limit))
		}
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: maxKeys,
	}

	result, err := client.ListObjectsV2(ctx, input)
	if err != nil {
		b.recordError(err)
		return nil, b.translateError(err, "ListObjects", prefix)
	}

	objects := make([]ObjectInfo, 0, len(result.Contents))
	for _, obj := range result.Contents {
		objects = append(objects, ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
			Metadata:     make(map[string]string),
		})
	}

	return objects, nil
}

// HealthCheck verifies the backend connection
func (b *Backend) HealthCheck(ctx context.Context) error {
	client := b.pool.Get()
	defer b.pool.Put(client)

	input := &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}
	if _, err := client.HeadBucket(ctx, input); err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

// GetMetrics returns current backend metrics
func (b *Backend) GetMetrics() BackendMetrics {
	return b.metrics.GetMetrics()
}

// Close closes the backend and releases resources
func (b *Backend) Close() error {
	return b.pool.Close()
}

func (b *Backend) recordMetrics(duration time.Duration, isError bool) {
	b.metrics.RecordMetrics(duration, isError)
}

func (b *Backend) recordError(err error) {
	b.metrics.RecordError(err)
}

// translateError classifies S3 SDK errors into the structured taxonomy
// pkg/retry and the CLI orchestration layer use to decide whether an
// operation is worth retrying; archivestore itself never inspects it.
func (b *Backend) translateError(err error, operation, key string) error {
	var code errors.ErrorCode
	var message string
	switch {
	case isErrorType[*s3types.NoSuchKey](err):
		code, message = errors.ErrCodeObjectNotFound, fmt.Sprintf("object not found: %s", key)
	case isErrorType[*s3types.NoSuchBucket](err):
		code, message = errors.ErrCodeBucketNotFound, fmt.Sprintf("bucket not found: %s", b.bucket)
	case stderrors.Is(err, context.DeadlineExceeded):
		code, message = errors.ErrCodeConnectionTimeout, fmt.Sprintf("%s timed out for %s", operation, key)
	case isThrottled(err):
		code, message = errors.ErrCodeServiceUnavailable, fmt.Sprintf("%s throttled for %s", operation, key)
	case isServerFault(err):
		code, message = errors.ErrCodeNetworkError, fmt.Sprintf("%s failed for %s", operation, key)
	default:
		code, message = errors.ErrCodeInternalError, fmt.Sprintf("%s failed for %s", operation, key)
	}
	return errors.New(code, message).
		WithComponent("storage.s3").
		WithOperation(operation).
		WithCause(err)
}

// isThrottled reports whether err is an HTTP 429 response, the signal
// pkg/retry's backoff exists to absorb.
func isThrottled(err error) bool {
	var respErr *smithyhttp.ResponseError
	if stderrors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusTooManyRequests
	}
	return false
}

// isServerFault reports whether the SDK attributes the failure to AWS
// rather than the request, per smithy-go's fault classification.
func isServerFault(err error) bool {
	var apiErr smithy.APIError
	return stderrors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer
}

func (b *Backend) detectContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".xml"):
		return "application/xml"
	case strings.HasSuffix(key, ".html"):
		return "text/html"
	case strings.HasSuffix(key, ".txt"):
		return "text/plain"
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func isErrorType[T error](err error) bool {
	var target T
	return stderrors.As(err, &target)
}
