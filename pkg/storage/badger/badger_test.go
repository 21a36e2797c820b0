package badger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/pkg/storage/badger"
	"github.com/openmined/mine/pkg/storage/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) storage.SubmissionRepository {
	t.Helper()

	repo, err := badger.NewRepository(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestRepository(t *testing.T) {
	testutil.RunRepositoryTests(t, newRepo)
}

func TestRepositoryPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	ctx := context.Background()

	repo, err := badger.NewRepository(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, testutil.TestSubmission(1, testutil.Weights)))
	require.NoError(t, repo.Close())

	repo, err = badger.NewRepository(dir)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Get(ctx, 1, testutil.Weights)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.ModelID)
}
