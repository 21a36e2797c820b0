package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	stateEndpoint  = "/state"
	modelsEndpoint = "/models"
)

type State struct {
	State    string `json:"state"`
	Operator string `json:"operator"`
}

type Model struct {
	ID             uint64 `json:"id"`
	Owner          string `json:"owner"`
	Bounty         uint64 `json:"bounty"`
	InitialError   uint64 `json:"initial_error"`
	TargetError    uint64 `json:"target_error"`
	GradientCount  uint64 `json:"gradient_count"`
	WeightsAddress string `json:"weights_address"`
}

type ModelsPage struct {
	Total  uint64  `json:"total"`
	Models []Model `json:"models"`
}

type Receipt struct {
	ModelID uint64 `json:"model_id"`
	TxHash  string `json:"tx_hash"`
	GasUsed uint64 `json:"gas_used"`
}

func (sdk *mineSDK) State() (State, error) {
	url := sdk.nodeURL + stateEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return State{}, err
	}

	var s State
	if err := json.Unmarshal(body, &s); err != nil {
		return State{}, err
	}

	return s, nil
}

func (sdk *mineSDK) Models() (ModelsPage, error) {
	url := sdk.nodeURL + modelsEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return ModelsPage{}, err
	}

	var p ModelsPage
	if err := json.Unmarshal(body, &p); err != nil {
		return ModelsPage{}, err
	}

	return p, nil
}

func (sdk *mineSDK) Model(id uint64) (Model, error) {
	url := fmt.Sprintf("%s%s/%d", sdk.nodeURL, modelsEndpoint, id)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Model{}, err
	}

	var m Model
	if err := json.Unmarshal(body, &m); err != nil {
		return Model{}, err
	}

	return m, nil
}

func (sdk *mineSDK) Train(id uint64) (Receipt, error) {
	url := fmt.Sprintf("%s%s/%d/train", sdk.nodeURL, modelsEndpoint, id)

	body, err := sdk.processRequest(http.MethodPost, url, nil, http.StatusCreated)
	if err != nil {
		return Receipt{}, err
	}

	var r Receipt
	if err := json.Unmarshal(body, &r); err != nil {
		return Receipt{}, err
	}

	return r, nil
}
