package s3

import (
	"time"
)

// Config represents S3 backend configuration
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	// Performance settings
	MaxRetries     int           `yaml:"max_retries"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PoolSize       int           `yaml:"pool_size"`

	// Advanced settings
	UseAccelerate bool `yaml:"use_accelerate"`
	UseDualStack  bool `yaml:"use_dual_stack"`
	DisableSSL    bool `yaml:"disable_ssl"`

	// Multipart upload settings — Backend.PutObject switches to a multipart
	// upload once an object crosses MultipartThreshold.
	MultipartThreshold   int64 `yaml:"multipart_threshold"`
	MultipartChunkSize   int64 `yaml:"multipart_chunk_size"`
	MultipartConcurrency int   `yaml:"multipart_concurrency"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		MaxRetries:           3,
		ConnectTimeout:       10 * time.Second,
		RequestTimeout:       30 * time.Second,
		PoolSize:             8,
		MultipartThreshold:   32 * 1024 * 1024,
		MultipartChunkSize:   16 * 1024 * 1024,
		MultipartConcurrency: 8,
	}
}

// ShouldUseMultipart reports whether an object of the given size should be
// uploaded via the multipart API rather than a single PutObject call.
func (c *Config) ShouldUseMultipart(fileSize int64) bool {
	return fileSize > c.MultipartThreshold
}

// GetOptimalChunkSize returns the chunk size this config would use for an
// object of the given size.
func (c *Config) GetOptimalChunkSize(fileSize int64) int64 {
	return CalculateOptimalChunkSize(fileSize, c.MultipartThreshold, c.MultipartChunkSize)
}

// CalculateOptimalChunkSize returns fileSize itself at or below threshold.
// Above it, the part size is half the base chunk size up to 100MB, the base
// size up to 1GB, and 2x, 4x or 8x the base above 1GB, 10GB and 100GB. 8x is
// the largest step, so an object over 10,000 such parts exceeds S3's
// 10,000-part limit.
func CalculateOptimalChunkSize(fileSize, threshold, baseChunkSize int64) int64 {
	if fileSize <= threshold {
		return fileSize
	}

	switch {
	case fileSize > 100*1024*1024*1024: // >100GB
		return baseChunkSize * 8
	case fileSize > 10*1024*1024*1024: // >10GB
		return baseChunkSize * 4
	case fileSize > 1024*1024*1024: // >1GB
		return baseChunkSize * 2
	case fileSize > 100*1024*1024: // >100MB
		return baseChunkSize
	default:
		return baseChunkSize / 2
	}
}

// CalculatePartCount returns the number of parts a file of fileSize bytes
// splits into at chunkSize, rounding up for a partial final part. A
// chunkSize of zero yields zero parts rather than dividing by zero.
func CalculatePartCount(fileSize, chunkSize int64) int {
	if chunkSize <= 0 {
		return 0
	}
	parts := fileSize / chunkSize
	if fileSize%chunkSize != 0 {
		parts++
	}
	if parts < 1 {
		parts = 1
	}
	return int(parts)
}
