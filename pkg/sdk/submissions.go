package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const submissionsEndpoint = "/submissions"

type Submission struct {
	ModelID          uint64    `json:"model_id"`
	WeightsAddress   string    `json:"weights_address"`
	GradientsAddress string    `json:"gradients_address"`
	TxHash           string    `json:"tx_hash"`
	GasUsed          uint64    `json:"gas_used"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

type SubmissionPage struct {
	PageMetadata
	Total       uint64       `json:"total"`
	Submissions []Submission `json:"submissions"`
}

func (sdk *mineSDK) Submissions(offset, limit uint64) (SubmissionPage, error) {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	query := ""
	if len(queries) > 0 {
		query = "?" + strings.Join(queries, "&")
	}
	url := sdk.nodeURL + submissionsEndpoint + query

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return SubmissionPage{}, err
	}

	var p SubmissionPage
	if err := json.Unmarshal(body, &p); err != nil {
		return SubmissionPage{}, err
	}

	return p, nil
}
