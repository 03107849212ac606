// Package artifact fetches serialized model bundles from local files, HTTP(S)
// endpoints or S3, optionally through a Redis byte cache and a SHA-256 check.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	httpclient "delivery-estimator/internal/common/http"
	"delivery-estimator/internal/common/logger"
)

var (
	ErrUnsupportedScheme = errors.New("UNSUPPORTED_SCHEME")
	ErrChecksumMismatch  = errors.New("CHECKSUM_MISMATCH")
)

// Source yields the raw bytes of one artifact.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Describe() string
}

// ObjectGetter downloads an object from a bucket.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// ByteCache is a TTL byte store.
type ByteCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// FetchRecorder receives one observation per fetch.
type FetchRecorder interface {
	RecordArtifactFetch(ctx context.Context, source string, d time.Duration, size int, err error)
}

// ==========================
// File
// ==========================

type FileSource struct {
	Path string
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path)
}

func (s *FileSource) Describe() string {
	return "file://" + s.Path
}

// ==========================
// HTTP
// ==========================

type HTTPSource struct {
	URL    string
	Client *httpclient.Client
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	return s.Client.GetBytes(ctx, s.URL)
}

func (s *HTTPSource) Describe() string {
	return s.URL
}

// ==========================
// S3
// ==========================

type S3Source struct {
	Bucket string
	Key    string
	Client ObjectGetter
}

func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	return s.Client.GetObject(ctx, s.Bucket, s.Key)
}

func (s *S3Source) Describe() string {
	return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Key)
}

// ==========================
// Redis cache
// ==========================

// CachedSource serves bytes from the cache when present and fills it after an
// origin fetch. Cache failures are logged and bypassed.
type CachedSource struct {
	Inner  Source
	Cache  ByteCache
	TTL    time.Duration
	Prefix string
	Logger logger.Logger
}

func (s *CachedSource) key() string {
	return s.Prefix + s.Inner.Describe()
}

func (s *CachedSource) Fetch(ctx context.Context) ([]byte, error) {
	key := s.key()
	data, ok, err := s.Cache.GetBytes(ctx, key)
	switch {
	case err != nil:
		s.Logger.Warn("artifact cache read failed", map[string]interface{}{"key": key, "error": err})
	case ok && len(data) > 0:
		s.Logger.Debug("artifact cache hit", map[string]interface{}{"key": key, "bytes": len(data)})
		return data, nil
	}

	data, err = s.Inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := s.Cache.SetBytes(ctx, key, data, s.TTL); err != nil {
			s.Logger.Warn("artifact cache write failed", map[string]interface{}{"key": key, "error": err})
		}
	}
	return data, nil
}

func (s *CachedSource) Describe() string {
	return s.Inner.Describe()
}

// Invalidate drops the cached copy.
func (s *CachedSource) Invalidate(ctx context.Context) {
	if err := s.Cache.Del(ctx, s.key()); err != nil {
		s.Logger.Warn("artifact cache invalidate failed", map[string]interface{}{"key": s.key(), "error": err})
	}
}

// ==========================
// Checksum
// ==========================

type invalidator interface {
	Invalidate(ctx context.Context)
}

// ChecksumSource verifies the SHA-256 of the fetched bytes.
type ChecksumSource struct {
	Inner  Source
	SHA256 string
}

func (s *ChecksumSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := s.Inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	got := Digest(data)
	if !strings.EqualFold(got, s.SHA256) {
		Invalidate(ctx, s.Inner)
		return nil, fmt.Errorf("%w: %s has sha256 %s, want %s", ErrChecksumMismatch, s.Inner.Describe(), got, s.SHA256)
	}
	return data, nil
}

func (s *ChecksumSource) Describe() string {
	return s.Inner.Describe()
}

func (s *ChecksumSource) Invalidate(ctx context.Context) {
	Invalidate(ctx, s.Inner)
}

// Invalidate drops any cached bytes behind src so the next Fetch reaches the
// origin. Sources without a cache are left alone.
func Invalidate(ctx context.Context, src Source) {
	if inv, ok := src.(invalidator); ok {
		inv.Invalidate(ctx)
	}
}

// Digest returns the lowercase hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ==========================
// Instrumentation
// ==========================

type instrumentedSource struct {
	Source
	kind     string
	recorder FetchRecorder
}

func (s *instrumentedSource) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()
	data, err := s.Source.Fetch(ctx)
	s.recorder.RecordArtifactFetch(ctx, s.kind, time.Since(start), len(data), err)
	return data, err
}

// ==========================
// Open
// ==========================

// Deps carries the clients Open may need. Nil fields disable the matching feature.
type Deps struct {
	HTTP     *httpclient.Client
	S3       ObjectGetter
	Cache    ByteCache
	CacheTTL time.Duration
	Prefix   string
	Recorder FetchRecorder
	Logger   logger.Logger
}

// Open picks a Source for uri: a plain path or file://, http(s)://, or s3://bucket/key.
// Remote sources go through the cache when one is configured, and a non-empty
// checksum is verified last.
func Open(uri, checksum string, deps Deps) (Source, error) {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}

	var (
		src    Source
		kind   string
		remote bool
	)

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// bare path; single-letter schemes are Windows drive letters
		src, kind = &FileSource{Path: uri}, "file"
	} else {
		switch strings.ToLower(u.Scheme) {
		case "file":
			src, kind = &FileSource{Path: u.Path}, "file"
		case "http", "https":
			if deps.HTTP == nil {
				return nil, fmt.Errorf("%w: no http client configured for %s", ErrUnsupportedScheme, uri)
			}
			src, kind, remote = &HTTPSource{URL: uri, Client: deps.HTTP}, "http", true
		case "s3":
			if deps.S3 == nil {
				return nil, fmt.Errorf("%w: no s3 client configured for %s", ErrUnsupportedScheme, uri)
			}
			key := strings.TrimPrefix(u.Path, "/")
			if u.Host == "" || key == "" {
				return nil, fmt.Errorf("s3 uri must be s3://bucket/key, got %s", uri)
			}
			src, kind, remote = &S3Source{Bucket: u.Host, Key: key, Client: deps.S3}, "s3", true
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
		}
	}

	if deps.Recorder != nil {
		src = &instrumentedSource{Source: src, kind: kind, recorder: deps.Recorder}
	}
	if remote && deps.Cache != nil {
		src = &CachedSource{Inner: src, Cache: deps.Cache, TTL: deps.CacheTTL, Prefix: deps.Prefix, Logger: deps.Logger}
	}
	if checksum != "" {
		src = &ChecksumSource{Inner: src, SHA256: checksum}
	}
	return src, nil
}
