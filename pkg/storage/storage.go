// Package storage keeps the ledger of gradients this miner has submitted.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Submission records one gradient accepted by the contract.
type Submission struct {
	ModelID          uint64    `json:"model_id"`
	WeightsAddress   string    `json:"weights_address"`
	GradientsAddress string    `json:"gradients_address"`
	TxHash           string    `json:"tx_hash"`
	GasUsed          uint64    `json:"gas_used"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Key identifies the training input: a model at a given weights version.
func (s Submission) Key() string {
	return SubmissionKey(s.ModelID, s.WeightsAddress)
}

func SubmissionKey(modelID uint64, weightsAddress string) string {
	return fmt.Sprintf("submission:%020d:%s", modelID, weightsAddress)
}

type SubmissionPage struct {
	Offset      uint64       `json:"offset"`
	Limit       uint64       `json:"limit"`
	Total       uint64       `json:"total"`
	Submissions []Submission `json:"submissions"`
}

type SubmissionRepository interface {
	Save(ctx context.Context, s Submission) error
	Get(ctx context.Context, modelID uint64, weightsAddress string) (Submission, error)
	List(ctx context.Context, offset, limit uint64) (SubmissionPage, error)
	Close() error
}

// Ledger backends.
const (
	TypeMemory   = "memory"
	TypeBadger   = "badger"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)
