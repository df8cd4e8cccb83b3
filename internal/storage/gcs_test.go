package storage

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGCSRequiresBucket(t *testing.T) {
	_, err := NewGCSClient(context.Background(), "", "")
	assert.ErrorContains(t, err, "bucket")
}

// Runs against fake-gcs-server or another emulator at STORAGE_EMULATOR_HOST.
func TestGCSDeleteAgainstEmulator(t *testing.T) {
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" {
		t.Skip("STORAGE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	bucket := "pinsweeper-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	c, err := NewGCSClient(ctx, bucket, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.bucket.Create(ctx, "pinsweeper-test", nil))

	w := c.bucket.Object("folder/file.jpg").NewWriter(ctx)
	_, err = w.Write([]byte("jpeg"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Delete(ctx, "folder/file.jpg"))

	err = c.Delete(ctx, "folder/file.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}
