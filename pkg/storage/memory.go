package storage

import (
	"context"
	"sort"
	"sync"

	pkgerrors "github.com/openmined/mine/pkg/errors"
)

type inMemoryRepository struct {
	sync.Mutex

	data map[string]Submission
}

func NewInMemoryRepository() SubmissionRepository {
	return &inMemoryRepository{
		data: make(map[string]Submission),
	}
}

func (r *inMemoryRepository) Save(_ context.Context, s Submission) error {
	if s.WeightsAddress == "" {
		return pkgerrors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	r.data[s.Key()] = s

	return nil
}

func (r *inMemoryRepository) Get(_ context.Context, modelID uint64, weightsAddress string) (Submission, error) {
	if weightsAddress == "" {
		return Submission{}, pkgerrors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	if s, ok := r.data[SubmissionKey(modelID, weightsAddress)]; ok {
		return s, nil
	}

	return Submission{}, pkgerrors.ErrNotFound
}

func (r *inMemoryRepository) List(_ context.Context, offset, limit uint64) (SubmissionPage, error) {
	r.Lock()
	defer r.Unlock()

	keys := make([]string, 0, len(r.data))
	for k := range r.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	page := SubmissionPage{
		Offset: offset,
		Limit:  limit,
		Total:  uint64(len(keys)),
	}
	if offset >= page.Total {
		return page, nil
	}

	end := min(offset+limit, page.Total)
	for _, k := range keys[offset:end] {
		page.Submissions = append(page.Submissions, r.data[k])
	}

	return page, nil
}

func (r *inMemoryRepository) Close() error {
	return nil
}
