package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServiceAccount(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "sa.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"type":"service_account","project_id":"riceguard","client_email":"svc@riceguard.iam","private_key":"unused"}`), 0o600))

	sa, err := LoadServiceAccount(good)
	require.NoError(t, err)
	assert.Equal(t, "riceguard", sa.ProjectID)
	assert.Equal(t, "svc@riceguard.iam", sa.ClientEmail)

	_, err = LoadServiceAccount(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	noProject := filepath.Join(dir, "np.json")
	require.NoError(t, os.WriteFile(noProject, []byte(`{"type":"service_account","client_email":"x"}`), 0o600))
	_, err = LoadServiceAccount(noProject)
	assert.ErrorContains(t, err, "project_id")

	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"type":"mystery","project_id":"p"}`), 0o600))
	_, err = LoadServiceAccount(unknown)
	assert.Error(t, err)

	garbage := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(garbage, []byte(`{`), 0o600))
	_, err = LoadServiceAccount(garbage)
	assert.Error(t, err)
}

func TestLastUpdatedCoercion(t *testing.T) {
	ref := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	got, ok := lastUpdated(ref)
	assert.True(t, ok)
	assert.True(t, got.Equal(ref))

	got, ok = lastUpdated(ref.Format(time.RFC3339Nano))
	assert.True(t, ok)
	assert.True(t, got.Equal(ref))

	got, ok = lastUpdated(float64(ref.UnixMilli()))
	assert.True(t, ok)
	assert.True(t, got.Equal(ref))

	_, ok = lastUpdated("yesterday")
	assert.False(t, ok)
	_, ok = lastUpdated(nil)
	assert.False(t, ok)
}
