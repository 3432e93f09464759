package api

import (
	"context"

	"github.com/absmach/secagg/manager"
	"github.com/go-kit/kit/endpoint"
)

func getModelEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		m, err := svc.GetModel(ctx)
		if err != nil {
			return nil, err
		}

		return modelRes{ModelState: weightsDTO{Weights: m.Weights}, ModelVersion: m.Version}, nil
	}
}

func submitEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(submitReq)
		if err := req.validate(); err != nil {
			return nil, err
		}

		out, err := svc.Submit(ctx, req.Submission)
		if err != nil {
			return nil, err
		}

		return newSubmitRes(out), nil
	}
}

func statusEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		st, err := svc.Status(ctx)
		if err != nil {
			return nil, err
		}

		return statusRes{Status: st}, nil
	}
}

func listModelsEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		versions, err := svc.ListModels(ctx)
		if err != nil {
			return nil, err
		}

		return listModelsRes{Versions: versions, Total: len(versions)}, nil
	}
}

func viewModelEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(viewModelReq)

		m, err := svc.GetModelVersion(ctx, req.version)
		if err != nil {
			return nil, err
		}

		return viewModelRes{
			ModelVersion: m.Version,
			Weights:      m.Weights,
			NumClients:   m.NumClients,
			TotalSamples: m.TotalSamples,
			MeanLoss:     m.MeanLoss,
			UpdatedAt:    m.UpdatedAt,
		}, nil
	}
}

func submitCBOREndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(submitCBORReq)
		if err := req.validate(); err != nil {
			return nil, err
		}

		out, err := manager.SubmitCBOR(ctx, svc, req.data)
		if err != nil {
			return nil, err
		}

		return newSubmitRes(out), nil
	}
}
