package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const CTJSON string = "application/json"

var ErrUnexpectedResponse = errors.New("unexpected response code")

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// State returns the connection state of the node and its operator.
	//
	// example:
	//  state, _ := sdk.State()
	//  fmt.Println(state.State, state.Operator)
	State() (State, error)

	// Models lists the models published on the contract, ordered by id.
	//
	// example:
	//  page, _ := sdk.Models()
	//  fmt.Println(page.Total)
	Models() (ModelsPage, error)

	// Model gets a model by id.
	//
	// example:
	//  model, _ := sdk.Model(0)
	//  fmt.Println(model.WeightsAddress)
	Model(id uint64) (Model, error)

	// Train runs one training cycle on the node and returns the receipt
	// of the gradient submission.
	//
	// example:
	//  receipt, _ := sdk.Train(0)
	//  fmt.Println(receipt.TxHash)
	Train(id uint64) (Receipt, error)

	// Submissions lists the gradients the node has submitted.
	//
	// example:
	//  page, _ := sdk.Submissions(0, 10)
	//  fmt.Println(page.Submissions)
	Submissions(offset, limit uint64) (SubmissionPage, error)
}

type mineSDK struct {
	nodeURL string
	client  *http.Client
}

type Config struct {
	NodeURL         string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &mineSDK{
		nodeURL: cfg.NodeURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *mineSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var res struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &res); err == nil && res.Error != "" {
			return []byte{}, fmt.Errorf("%w %d: %s", ErrUnexpectedResponse, resp.StatusCode, res.Error)
		}

		return []byte{}, fmt.Errorf("%w: %d", ErrUnexpectedResponse, resp.StatusCode)
	}

	return body, nil
}
