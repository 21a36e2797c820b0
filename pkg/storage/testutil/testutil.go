// Package testutil holds the behaviour every submission ledger backend must
// share.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	pkgerrors "github.com/openmined/mine/pkg/errors"
	"github.com/openmined/mine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const Weights = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

func TestSubmission(modelID uint64, weightsAddress string) storage.Submission {
	return storage.Submission{
		ModelID:          modelID,
		WeightsAddress:   weightsAddress,
		GradientsAddress: "QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o",
		TxHash:           "0xabc",
		GasUsed:          21000,
		SubmittedAt:      time.Now().UTC().Truncate(time.Second),
	}
}

// RunRepositoryTests runs the shared ledger cases. newRepo must return an
// empty repository on every call.
func RunRepositoryTests(t *testing.T, newRepo func(t *testing.T) storage.SubmissionRepository) {
	t.Run("SaveGet", func(t *testing.T) {
		testSaveGet(t, newRepo(t))
	})
	t.Run("Overwrite", func(t *testing.T) {
		testOverwrite(t, newRepo(t))
	})
	t.Run("List", func(t *testing.T) {
		testList(t, newRepo(t))
	})
}

func testSaveGet(t *testing.T, repo storage.SubmissionRepository) {
	ctx := context.Background()
	saved := TestSubmission(3, Weights)

	cases := []struct {
		desc    string
		save    *storage.Submission
		modelID uint64
		weights string
		err     error
	}{
		{
			desc:    "get missing submission",
			modelID: 3,
			weights: Weights,
			err:     pkgerrors.ErrNotFound,
		},
		{
			desc:    "save and get submission",
			save:    &saved,
			modelID: 3,
			weights: Weights,
		},
		{
			desc:    "get same model at other weights",
			modelID: 3,
			weights: "QmOther",
			err:     pkgerrors.ErrNotFound,
		},
		{
			desc:    "get with empty weights",
			modelID: 3,
			err:     pkgerrors.ErrEmptyKey,
		},
		{
			desc:    "save with empty weights",
			save:    &storage.Submission{ModelID: 1},
			modelID: 1,
			err:     pkgerrors.ErrEmptyKey,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			if tc.save != nil {
				err := repo.Save(ctx, *tc.save)
				if tc.err != nil {
					assert.ErrorIs(t, err, tc.err)

					return
				}
				require.NoError(t, err)
			}

			got, err := repo.Get(ctx, tc.modelID, tc.weights)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, saved.ModelID, got.ModelID)
			assert.Equal(t, saved.GradientsAddress, got.GradientsAddress)
			assert.Equal(t, saved.TxHash, got.TxHash)
			assert.Equal(t, saved.GasUsed, got.GasUsed)
			assert.True(t, saved.SubmittedAt.Equal(got.SubmittedAt))
		})
	}
}

func testOverwrite(t *testing.T, repo storage.SubmissionRepository) {
	ctx := context.Background()

	first := TestSubmission(5, Weights)
	require.NoError(t, repo.Save(ctx, first))

	second := first
	second.TxHash = "0xdef"
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Get(ctx, 5, Weights)
	require.NoError(t, err)
	assert.Equal(t, "0xdef", got.TxHash)

	page, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), page.Total)
}

func testList(t *testing.T, repo storage.SubmissionRepository) {
	ctx := context.Background()
	for i := range uint64(12) {
		require.NoError(t, repo.Save(ctx, TestSubmission(i, fmt.Sprintf("Qm%d", i))))
	}

	cases := []struct {
		desc   string
		offset uint64
		limit  uint64
		ids    []uint64
	}{
		{
			desc:   "first page",
			offset: 0,
			limit:  3,
			ids:    []uint64{0, 1, 2},
		},
		{
			desc:   "ordered numerically past single digits",
			offset: 9,
			limit:  5,
			ids:    []uint64{9, 10, 11},
		},
		{
			desc:   "offset past end",
			offset: 20,
			limit:  5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			page, err := repo.List(ctx, tc.offset, tc.limit)
			require.NoError(t, err)
			assert.Equal(t, uint64(12), page.Total)
			assert.Equal(t, tc.offset, page.Offset)
			assert.Equal(t, tc.limit, page.Limit)

			var ids []uint64
			for _, s := range page.Submissions {
				ids = append(ids, s.ModelID)
			}
			assert.Equal(t, tc.ids, ids)
		})
	}
}
