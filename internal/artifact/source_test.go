package artifact

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"delivery-estimator/internal/common/database"
	httpclient "delivery-estimator/internal/common/http"
	"delivery-estimator/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type countingServer struct {
	*httptest.Server
	hits int32
}

func newCountingServer(t *testing.T, body string) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&cs.hits, 1)
		w.Write([]byte(body))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func newMiniredisCache(t *testing.T) (*database.RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return &database.RedisClient{Client: client}, mr
}

type fakeGetter struct {
	data map[string][]byte
}

func (f *fakeGetter) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if d, ok := f.data[bucket+"/"+key]; ok {
		return d, nil
	}
	return nil, errors.New("NoSuchKey")
}

type recordedFetch struct {
	source string
	size   int
	err    error
}

type fakeRecorder struct {
	fetches []recordedFetch
}

func (r *fakeRecorder) RecordArtifactFetch(ctx context.Context, source string, d time.Duration, size int, err error) {
	r.fetches = append(r.fetches, recordedFetch{source: source, size: size, err: err})
}

// ==========================
// Source Tests
// ==========================

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"format":"linear"}`), 0o600))

	src, err := Open(path, "", Deps{})
	require.NoError(t, err)
	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"format":"linear"}`, string(data))
	assert.Equal(t, "file://"+path, src.Describe())

	src, err = Open("file://"+path, "", Deps{})
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	assert.NoError(t, err)

	missing, _ := Open(filepath.Join(t.TempDir(), "nope.json"), "", Deps{})
	_, err = missing.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := newCountingServer(t, "bundle-bytes")
	rec := &fakeRecorder{}

	src, err := Open(srv.URL+"/models/delivery.json", "", Deps{
		HTTP:     httpclient.NewClient(time.Second, 0),
		Recorder: rec,
	})
	require.NoError(t, err)

	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bundle-bytes", string(data))
	require.Len(t, rec.fetches, 1)
	assert.Equal(t, "http", rec.fetches[0].source)
	assert.Equal(t, len("bundle-bytes"), rec.fetches[0].size)
}

func TestS3Source(t *testing.T) {
	getter := &fakeGetter{data: map[string][]byte{"models/v1/delivery.json": []byte("s3-bytes")}}

	src, err := Open("s3://models/v1/delivery.json", "", Deps{S3: getter})
	require.NoError(t, err)
	assert.Equal(t, "s3://models/v1/delivery.json", src.Describe())

	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3-bytes", string(data))
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		deps Deps
		is   error
	}{
		{name: "ftp", uri: "ftp://host/model", is: ErrUnsupportedScheme},
		{name: "http without client", uri: "http://host/model", is: ErrUnsupportedScheme},
		{name: "s3 without client", uri: "s3://bucket/key", is: ErrUnsupportedScheme},
		{name: "s3 without key", uri: "s3://bucket", deps: Deps{S3: &fakeGetter{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.uri, "", tt.deps)
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is))
			}
		})
	}
}

// ==========================
// Cache Tests
// ==========================

func TestCachedSource_SecondLoadSkipsOrigin(t *testing.T) {
	srv := newCountingServer(t, "cached-bundle")
	cache, mr := newMiniredisCache(t)

	deps := Deps{
		HTTP:     httpclient.NewClient(time.Second, 0),
		Cache:    cache,
		CacheTTL: time.Hour,
		Prefix:   "model-artifact:",
		Logger:   logger.NewTestLogger(t),
	}

	for i := 0; i < 3; i++ {
		src, err := Open(srv.URL+"/m.json", "", deps)
		require.NoError(t, err)
		data, err := src.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "cached-bundle", string(data))
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&srv.hits))
	assert.True(t, mr.Exists("model-artifact:"+srv.URL+"/m.json"))
	assert.Equal(t, time.Hour, mr.TTL("model-artifact:"+srv.URL+"/m.json"))
}

func TestCachedSource_RedisDownFallsBackToOrigin(t *testing.T) {
	srv := newCountingServer(t, "origin")
	db, mock := redismock.NewClientMock()

	key := "p:" + srv.URL
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, []byte("origin"), time.Minute).SetErr(errors.New("connection refused"))

	src := &CachedSource{
		Inner:  &HTTPSource{URL: srv.URL, Client: httpclient.NewClient(time.Second, 0)},
		Cache:  &database.RedisClient{Client: db},
		TTL:    time.Minute,
		Prefix: "p:",
		Logger: logger.NewNoOpLogger(),
	}

	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "origin", string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Checksum Tests
// ==========================

func TestChecksumSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))
	good := Digest([]byte("payload"))

	src, err := Open(path, good, Deps{})
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	assert.NoError(t, err)

	src, err = Open(path, "deadbeef", Deps{})
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestChecksumSource_InvalidatesPoisonedCache(t *testing.T) {
	srv := newCountingServer(t, "fresh")
	cache, mr := newMiniredisCache(t)
	key := "model-artifact:" + srv.URL
	require.NoError(t, mr.Set(key, "poisoned"))

	src, err := Open(srv.URL, Digest([]byte("fresh")), Deps{
		HTTP:     httpclient.NewClient(time.Second, 0),
		Cache:    cache,
		CacheTTL: time.Hour,
		Prefix:   "model-artifact:",
	})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
	assert.False(t, mr.Exists(key))

	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestInvalidate(t *testing.T) {
	srv := newCountingServer(t, "bundle")
	cache, mr := newMiniredisCache(t)
	key := "model-artifact:" + srv.URL

	src, err := Open(srv.URL, Digest([]byte("bundle")), Deps{
		HTTP:     httpclient.NewClient(time.Second, 0),
		Cache:    cache,
		CacheTTL: time.Hour,
		Prefix:   "model-artifact:",
	})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, mr.Exists(key))

	Invalidate(context.Background(), src)
	assert.False(t, mr.Exists(key))

	_, err = src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&srv.hits))

	// no cache behind a file source
	Invalidate(context.Background(), &FileSource{Path: "unused"})
}

func TestDigest(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Digest(nil))
}
