package storage_test

import (
	"testing"

	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/pkg/storage/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryRepository(t *testing.T) {
	testutil.RunRepositoryTests(t, func(*testing.T) storage.SubmissionRepository {
		return storage.NewInMemoryRepository()
	})
}

func TestSubmissionKey(t *testing.T) {
	s := testutil.TestSubmission(12, testutil.Weights)

	assert.Equal(t, "submission:00000000000000000012:"+testutil.Weights, s.Key())
	assert.Less(t, storage.SubmissionKey(9, "Qm"), storage.SubmissionKey(10, "Qm"))
}
