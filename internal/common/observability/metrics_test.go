package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordArtifactFetch_ExportsToRegistry(t *testing.T) {
	reg := promclient.NewRegistry()
	o, err := NewWithRegisterer("estimator-test", reg)
	require.NoError(t, err)
	defer o.Shutdown(context.Background())

	ctx := context.Background()
	o.RecordArtifactFetch(ctx, "http", 12*time.Millisecond, 2048, nil)
	o.RecordArtifactFetch(ctx, "http", 3*time.Millisecond, 0, errors.New("boom"))

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "artifact_fetch_count")
	assert.Contains(t, joined, "artifact_fetch_duration")
	assert.Contains(t, joined, "artifact_fetch_size")
}

func TestRecordArtifactFetch_NilReceiver(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		o.RecordArtifactFetch(context.Background(), "file", time.Millisecond, 1, nil)
	})
	assert.NoError(t, o.Shutdown(context.Background()))
}
