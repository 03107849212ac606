package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry("testdata/registry.json")
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", reg.Version)
	require.Len(t, reg.Models, 2)

	m, ok := reg.Find("courier-demand")
	require.True(t, ok)
	assert.Equal(t, "courier_demand", m.Kind)
	assert.False(t, m.Preload)

	_, ok = reg.Find("nope")
	assert.False(t, ok)
}

func TestLoadRegistry_Missing(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSaveAndUpsert(t *testing.T) {
	reg, err := LoadRegistry("testdata/registry.json")
	require.NoError(t, err)

	reg.Upsert(Model{Name: "delivery-time", Kind: "delivery_time", Version: "2024.07", URI: "https://models.example.com/dt.json"})
	reg.Upsert(Model{Name: "delivery-time-linear", Kind: "delivery_time", Version: "1", URI: "dt-linear.json"})

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, reg.Save(path))

	again, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, again.Models, 3)
	m, _ := again.Find("delivery-time")
	assert.Equal(t, "2024.07", m.Version)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		models  []Model
		wantErr string
	}{
		{name: "ok", models: []Model{{Name: "a", Kind: "delivery_time", URI: "a.json"}}},
		{name: "no name", models: []Model{{Kind: "delivery_time", URI: "a.json"}}, wantErr: "name is required"},
		{name: "duplicate", models: []Model{
			{Name: "a", Kind: "delivery_time", URI: "a.json"},
			{Name: "a", Kind: "courier_demand", URI: "b.json"},
		}, wantErr: "duplicate name"},
		{name: "bad kind", models: []Model{{Name: "a", Kind: "eta", URI: "a.json"}}, wantErr: "kind"},
		{name: "no uri", models: []Model{{Name: "a", Kind: "delivery_time"}}, wantErr: "uri is required"},
		{name: "bad sha", models: []Model{{Name: "a", Kind: "delivery_time", URI: "a", SHA256: "xyz"}}, wantErr: "sha256"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&ModelRegistry{Models: tt.models}).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "display_name", "kind", "version", "uri", "sha256", "preload", "tags"}).
		AddRow("courier-demand", "Courier headcount", "courier_demand", "3", "s3://models/cd.json", nil, false, "{}").
		AddRow("delivery-time", nil, "delivery_time", "7", "https://models.example.com/dt.json", "", true, "{forest,eu}")
	mock.ExpectQuery("SELECT name, display_name, kind, version, uri, sha256, preload, tags").WillReturnRows(rows)

	reg, err := LoadFromDB(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, reg.Models, 2)

	dt, ok := reg.Find("delivery-time")
	require.True(t, ok)
	assert.True(t, dt.Preload)
	assert.Equal(t, []string{"forest", "eu"}, dt.Tags)
	assert.Equal(t, "", dt.DisplayName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadFromDB_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name").WillReturnError(errors.New("relation does not exist"))

	_, err = LoadFromDB(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model_artifacts")
}
