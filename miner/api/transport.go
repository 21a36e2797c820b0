package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/openmined/mine/miner"
	"github.com/openmined/mine/pkg/api"
	pkgerrors "github.com/openmined/mine/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	svcName    = "mine"
	modelIDKey = "modelID"
)

func MakeHandler(svc miner.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Get("/state", otelhttp.NewHandler(kithttp.NewServer(
		stateEndpoint(svc),
		kithttp.NopRequestDecoder,
		api.EncodeResponse,
		opts...,
	), "get-state").ServeHTTP)

	mux.Route("/models", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listModelsEndpoint(svc),
			kithttp.NopRequestDecoder,
			api.EncodeResponse,
			opts...,
		), "list-models").ServeHTTP)
		r.Route("/{modelID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getModelEndpoint(svc),
				decodeModelReq,
				api.EncodeResponse,
				opts...,
			), "get-model").ServeHTTP)
			r.Post("/train", otelhttp.NewHandler(kithttp.NewServer(
				trainModelEndpoint(svc),
				decodeModelReq,
				api.EncodeResponse,
				opts...,
			), "train-model").ServeHTTP)
		})
	})

	mux.Get("/submissions", otelhttp.NewHandler(kithttp.NewServer(
		listSubmissionsEndpoint(svc),
		decodeListReq,
		api.EncodeResponse,
		opts...,
	), "list-submissions").ServeHTTP)

	mux.Get("/health", supermq.Health(svcName, instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeModelReq(_ context.Context, r *http.Request) (any, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, modelIDKey), 10, 64)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidID, err)
	}

	return modelReq{id: id}, nil
}

func decodeListReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listReq{
		offset: o,
		limit:  l,
	}, nil
}
