// Package sonar reads models and gradients from the Sonar model repository
// contract and submits new gradients to it.
package sonar

import (
	"context"
	"errors"
	"fmt"

	"github.com/openmined/mine/pkg/eth"
)

const (
	sigGetNumModels    = "getNumModels()"
	sigGetModel        = "getModel(uint256)"
	sigGetNumGradients = "getNumGradientsforModel(uint256)"
	sigGetGradient     = "getGradient(uint256,uint256)"
	sigAddGradient     = "addGradient(uint256,bytes32,bytes32)"

	modelWords    = 6
	gradientWords = 7
)

var ErrUnexpectedResult = errors.New("unexpected contract return data")

// Backend is the part of the Ethereum client the gateway needs.
type Backend interface {
	Call(ctx context.Context, to eth.Address, data eth.Bytes) ([]byte, error)
	SendTransaction(ctx context.Context, from, to eth.Address, data eth.Bytes) (eth.Hash, error)
	WaitReceipt(ctx context.Context, hash eth.Hash) (eth.Receipt, error)
}

type Model struct {
	ID             uint64      `json:"id"`
	Owner          eth.Address `json:"owner"`
	Bounty         uint64      `json:"bounty"`
	InitialError   uint64      `json:"initial_error"`
	TargetError    uint64      `json:"target_error"`
	GradientCount  uint64      `json:"gradient_count"`
	WeightsAddress string      `json:"weights_address"`
}

type Gradient struct {
	ID               uint64      `json:"id"`
	From             eth.Address `json:"from"`
	GradientsAddress string      `json:"gradients_address"`
	NewModelError    uint64      `json:"new_model_error"`
	WeightsAddress   string      `json:"weights_address"`
}

type Receipt struct {
	TxHash  string `json:"tx_hash"`
	GasUsed uint64 `json:"gas_used"`
}

type Gateway struct {
	backend  Backend
	contract eth.Address
	operator eth.Address
}

func New(backend Backend, contract, operator eth.Address) *Gateway {
	return &Gateway{
		backend:  backend,
		contract: contract,
		operator: operator,
	}
}

func (g *Gateway) Contract() eth.Address {
	return g.contract
}

func (g *Gateway) Operator() eth.Address {
	return g.operator
}

func (g *Gateway) ModelCount(ctx context.Context) (uint64, error) {
	words, err := g.call(ctx, 1, sigGetNumModels)
	if err != nil {
		return 0, err
	}

	return words[0].Uint64()
}

func (g *Gateway) Model(ctx context.Context, id uint64) (Model, error) {
	words, err := g.call(ctx, modelWords, sigGetModel, eth.WordFromUint64(id))
	if err != nil {
		return Model{}, err
	}

	m := Model{
		ID:             id,
		Owner:          words[0].Address(),
		WeightsAddress: DecodeAddress(words[4], words[5]),
	}
	if m.Bounty, err = words[1].Uint64(); err != nil {
		return Model{}, fmt.Errorf("bounty of model %d: %w", id, err)
	}
	if m.InitialError, err = words[2].Uint64(); err != nil {
		return Model{}, fmt.Errorf("initial error of model %d: %w", id, err)
	}
	if m.TargetError, err = words[3].Uint64(); err != nil {
		return Model{}, fmt.Errorf("target error of model %d: %w", id, err)
	}

	count, err := g.call(ctx, 1, sigGetNumGradients, eth.WordFromUint64(id))
	if err != nil {
		return Model{}, err
	}
	if m.GradientCount, err = count[0].Uint64(); err != nil {
		return Model{}, fmt.Errorf("gradient count of model %d: %w", id, err)
	}

	return m, nil
}

func (g *Gateway) Gradient(ctx context.Context, modelID, index uint64) (Gradient, error) {
	words, err := g.call(ctx, gradientWords, sigGetGradient, eth.WordFromUint64(modelID), eth.WordFromUint64(index))
	if err != nil {
		return Gradient{}, err
	}

	gr := Gradient{
		From:             words[1].Address(),
		GradientsAddress: DecodeAddress(words[2], words[3]),
		WeightsAddress:   DecodeAddress(words[5], words[6]),
	}
	if gr.ID, err = words[0].Uint64(); err != nil {
		return Gradient{}, fmt.Errorf("id of gradient %d/%d: %w", modelID, index, err)
	}
	if gr.NewModelError, err = words[4].Uint64(); err != nil {
		return Gradient{}, fmt.Errorf("error of gradient %d/%d: %w", modelID, index, err)
	}

	return gr, nil
}

// AddGradient submits gradientsAddress for the model as a transaction from
// the operator and waits until it is mined.
func (g *Gateway) AddGradient(ctx context.Context, modelID uint64, gradientsAddress string) (Receipt, error) {
	addr, err := EncodeAddress(gradientsAddress)
	if err != nil {
		return Receipt{}, err
	}

	data := eth.EncodeCall(sigAddGradient, eth.WordFromUint64(modelID), addr[0], addr[1])
	hash, err := g.backend.SendTransaction(ctx, g.operator, g.contract, data)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to send addGradient transaction: %w", err)
	}

	receipt, err := g.backend.WaitReceipt(ctx, hash)
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{
		TxHash:  receipt.TransactionHash.String(),
		GasUsed: uint64(receipt.GasUsed),
	}, nil
}

func (g *Gateway) call(ctx context.Context, want int, signature string, args ...eth.Word) ([]eth.Word, error) {
	ret, err := g.backend.Call(ctx, g.contract, eth.EncodeCall(signature, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", signature, err)
	}

	words, err := eth.DecodeWords(ret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", signature, err)
	}
	if len(words) < want {
		return nil, fmt.Errorf("%w: %s returned %d words, want %d", ErrUnexpectedResult, signature, len(words), want)
	}

	return words, nil
}
