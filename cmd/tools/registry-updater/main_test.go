package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"delivery-estimator/internal/artifact"
	"delivery-estimator/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func writeArtifact(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func seedRegistry(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	art := writeArtifact(t, dir, "dt.json", `{"format":"linear"}`)
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, addModel(path, registry.Model{
		Name: "delivery-time", Kind: "delivery_time", Version: "1", URI: art, Preload: true,
	}, true))
	return path, art
}

type fakeUploader struct {
	bucket, key string
	data        []byte
	err         error
}

func (f *fakeUploader) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	f.bucket, f.key, f.data = bucket, key, data
	return f.err
}

// ==========================
// Command Tests
// ==========================

func TestAddModel(t *testing.T) {
	path, art := seedRegistry(t)

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Models, 1)
	assert.Equal(t, artifact.Digest([]byte(`{"format":"linear"}`)), reg.Models[0].SHA256)
	assert.NotEmpty(t, reg.LastUpdated)

	err = addModel(path, registry.Model{Name: "delivery-time", Kind: "delivery_time", URI: art}, true)
	assert.EqualError(t, err, "model with name delivery-time already exists")

	err = addModel(path, registry.Model{Name: "cd", Kind: "courier_demand", URI: "https://models.example/cd.json"}, true)
	require.NoError(t, err)
	reg, err = registry.LoadRegistry(path)
	require.NoError(t, err)
	cd, ok := reg.Find("cd")
	require.True(t, ok)
	assert.Empty(t, cd.SHA256)

	err = addModel(path, registry.Model{Name: "bad", Kind: "eta", URI: art}, false)
	assert.Error(t, err)
}

func TestUpdateModel(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		value     string
		wantErr   bool
		validateM func(t *testing.T, m *registry.Model)
	}{
		{
			name: "version", field: "version", value: "2",
			validateM: func(t *testing.T, m *registry.Model) { assert.Equal(t, "2", m.Version) },
		},
		{
			name: "preload", field: "preload", value: "false",
			validateM: func(t *testing.T, m *registry.Model) { assert.False(t, m.Preload) },
		},
		{
			name: "uri clears checksum", field: "uri", value: "s3://models/dt.json",
			validateM: func(t *testing.T, m *registry.Model) {
				assert.Equal(t, "s3://models/dt.json", m.URI)
				assert.Empty(t, m.SHA256)
			},
		},
		{
			name: "tags", field: "tags", value: "forest, pmml",
			validateM: func(t *testing.T, m *registry.Model) { assert.Equal(t, []string{"forest", "pmml"}, m.Tags) },
		},
		{name: "bad preload", field: "preload", value: "maybe", wantErr: true},
		{name: "bad kind", field: "kind", value: "eta", wantErr: true},
		{name: "bad sha", field: "sha256", value: "abc", wantErr: true},
		{name: "unknown field", field: "owner", value: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, _ := seedRegistry(t)

			err := updateModel(path, "delivery-time", tt.field, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			reg, err := registry.LoadRegistry(path)
			require.NoError(t, err)
			m, ok := reg.Find("delivery-time")
			require.True(t, ok)
			tt.validateM(t, m)
		})
	}

	path, _ := seedRegistry(t)
	assert.EqualError(t, updateModel(path, "nope", "version", "2"), "model with name nope not found")
}

func TestRefreshChecksums(t *testing.T) {
	path, art := seedRegistry(t)
	require.NoError(t, os.WriteFile(art, []byte(`{"format":"linear","v":2}`), 0o644))

	updated, err := refreshChecksums(context.Background(), path, "", artifact.Deps{})
	require.NoError(t, err)
	assert.Equal(t, []string{"delivery-time"}, updated)

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, artifact.Digest([]byte(`{"format":"linear","v":2}`)), reg.Models[0].SHA256)

	_, err = refreshChecksums(context.Background(), path, "missing", artifact.Deps{})
	assert.EqualError(t, err, "model with name missing not found")
}

func TestPublishModel(t *testing.T) {
	path, _ := seedRegistry(t)
	bundle := writeArtifact(t, t.TempDir(), "new.json", `{"format":"linear","v":3}`)

	up := &fakeUploader{}
	err := publishModel(context.Background(), path, "delivery-time", bundle, "s3://models/dt/3.json", "3", up)
	require.NoError(t, err)

	assert.Equal(t, "models", up.bucket)
	assert.Equal(t, "dt/3.json", up.key)
	assert.Equal(t, `{"format":"linear","v":3}`, string(up.data))

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	m, _ := reg.Find("delivery-time")
	assert.Equal(t, "s3://models/dt/3.json", m.URI)
	assert.Equal(t, "3", m.Version)
	assert.Equal(t, artifact.Digest(up.data), m.SHA256)
}

func TestPublishModel_Errors(t *testing.T) {
	path, art := seedRegistry(t)

	err := publishModel(context.Background(), path, "delivery-time", art, "https://x/y", "", &fakeUploader{})
	assert.Error(t, err)

	err = publishModel(context.Background(), path, "delivery-time", art, "s3://bucket", "", &fakeUploader{})
	assert.Error(t, err)

	err = publishModel(context.Background(), path, "nope", art, "s3://b/k", "", &fakeUploader{})
	assert.Error(t, err)

	uploadErr := errors.New("access denied")
	err = publishModel(context.Background(), path, "delivery-time", art, "s3://b/k", "", &fakeUploader{err: uploadErr})
	assert.ErrorIs(t, err, uploadErr)

	// a failed upload leaves the registry untouched
	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, art, reg.Models[0].URI)
}

func TestValidateAndList(t *testing.T) {
	path, _ := seedRegistry(t)
	assert.NoError(t, validateRegistry(path))

	var buf bytes.Buffer
	require.NoError(t, listModels(path, &buf))
	assert.Contains(t, buf.String(), "NAME")
	assert.Contains(t, buf.String(), "delivery-time")
	assert.Contains(t, buf.String(), "delivery_time")

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"version":"1","models":[]}`), 0o644))
	assert.Error(t, validateRegistry(empty))

	assert.Error(t, validateRegistry(filepath.Join(t.TempDir(), "missing.json")))
}

func TestLocalPath(t *testing.T) {
	p, ok := localPath("configs/models/a.json")
	assert.True(t, ok)
	assert.Equal(t, "configs/models/a.json", p)

	p, ok = localPath("file:///srv/models/a.json")
	assert.True(t, ok)
	assert.Equal(t, "/srv/models/a.json", p)

	_, ok = localPath("s3://bucket/a.json")
	assert.False(t, ok)
}
