package api

import (
	"errors"

	"github.com/openmined/mine/pkg/api"
)

var errLimitSize = errors.New("limit must be between 1 and 100")

// modelReq carries an id already parsed by the decoder.
type modelReq struct {
	id uint64
}

type listReq struct {
	offset, limit uint64
}

func (r *listReq) validate() error {
	if r.limit == 0 || r.limit > api.MaxLimitSize {
		return errLimitSize
	}

	return nil
}
