package api

import (
	"fmt"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/fl"
)

type getModelReq struct{}

type submitReq struct {
	fl.Submission
}

func (req submitReq) validate() error {
	if len(req.EncryptedShares) == 0 {
		return pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("model_weights is required"))
	}
	if req.NumSamples <= 0 {
		return pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("num_samples must be positive"))
	}

	return nil
}

type statusReq struct{}

type listModelsReq struct{}

type viewModelReq struct {
	version uint64
}

type submitCBORReq struct {
	data []byte
}

func (req submitCBORReq) validate() error {
	if len(req.data) == 0 {
		return pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("empty CBOR body"))
	}

	return nil
}
