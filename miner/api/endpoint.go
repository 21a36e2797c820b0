package api

import (
	"context"
	"errors"
	"slices"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
	"github.com/openmined/mine/miner"
	pkgerrors "github.com/openmined/mine/pkg/errors"
	"github.com/openmined/mine/sonar"
)

func stateEndpoint(svc miner.Service) endpoint.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return stateRes{
			State:    svc.State(),
			Operator: svc.Operator(),
		}, nil
	}
}

func listModelsEndpoint(svc miner.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		models, err := svc.Models(ctx)
		if err != nil {
			return listModelsRes{}, serviceError(err)
		}

		res := listModelsRes{
			Total:  uint64(len(models)),
			Models: make([]sonar.Model, 0, len(models)),
		}
		for _, m := range models {
			res.Models = append(res.Models, m)
		}
		slices.SortFunc(res.Models, func(a, b sonar.Model) int {
			switch {
			case a.ID < b.ID:
				return -1
			case a.ID > b.ID:
				return 1
			default:
				return 0
			}
		})

		return res, nil
	}
}

func getModelEndpoint(svc miner.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(modelReq)
		if !ok {
			return modelRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}

		m, err := svc.Model(ctx, req.id)
		if err != nil {
			return modelRes{}, serviceError(err)
		}

		return modelRes{Model: m}, nil
	}
}

func trainModelEndpoint(svc miner.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(modelReq)
		if !ok {
			return trainRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}

		m, err := svc.Model(ctx, req.id)
		if err != nil {
			return trainRes{}, serviceError(err)
		}

		receipt, err := svc.Train(ctx, m)
		if err != nil {
			return trainRes{}, serviceError(err)
		}

		return trainRes{ModelID: m.ID, Receipt: receipt}, nil
	}
}

func listSubmissionsEndpoint(svc miner.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listReq)
		if !ok {
			return listSubmissionsRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listSubmissionsRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.Submissions(ctx, req.offset, req.limit)
		if err != nil {
			return listSubmissionsRes{}, err
		}

		return listSubmissionsRes{SubmissionPage: page}, nil
	}
}

func serviceError(err error) error {
	if errors.Is(err, miner.ErrNotConnected) {
		return errors.Join(pkgerrors.ErrUnavailable, err)
	}

	return err
}
