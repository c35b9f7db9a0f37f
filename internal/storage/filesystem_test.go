package storage

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statcube/internal/domain"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	store := NewFilesystemStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.SaveBuffer(ctx, "ds1", "facts.csv", []byte("a,b\n1,2\n")))

	data, err := store.LoadBuffer(ctx, "ds1", "facts.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	rc, err := store.LoadStream(ctx, "ds1", "facts.csv")
	require.NoError(t, err)
	streamed, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, streamed)

	require.NoError(t, store.Delete(ctx, "ds1", "facts.csv"))

	_, err = store.LoadBuffer(ctx, "ds1", "facts.csv")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestFilesystemStoreFilenameCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	store := NewFilesystemStore(root)
	ctx := context.Background()

	require.NoError(t, store.SaveBuffer(ctx, "ds1", "../escape.csv", []byte("x")))

	// The sanitized name must stay inside the dataset directory.
	data, err := store.LoadBuffer(ctx, "ds1", "../escape.csv")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestGuardedStoreMapsDeadlineToTransient(t *testing.T) {
	store := NewGuardedStore(slowStore{}, 10*time.Millisecond, 0, 0)

	_, err := store.LoadBuffer(context.Background(), "ds1", "facts.csv")
	var transient *domain.TransientStorageError
	require.ErrorAs(t, err, &transient)
}

// slowStore blocks until the context expires.
type slowStore struct{}

func (slowStore) LoadBuffer(ctx context.Context, _, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowStore) SaveBuffer(ctx context.Context, _, _ string, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func (slowStore) Delete(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (slowStore) LoadStream(ctx context.Context, _, _ string) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
