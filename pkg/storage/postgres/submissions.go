package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/openmined/mine/pkg/errors"
	"github.com/openmined/mine/pkg/storage"
)

type submissionRepo struct {
	db *Database
}

// NewRepository returns a ledger backed by db. Closing the repository closes
// db.
func NewRepository(db *Database) storage.SubmissionRepository {
	return &submissionRepo{db: db}
}

type dbSubmission struct {
	ModelID          int64     `db:"model_id"`
	WeightsAddress   string    `db:"weights_address"`
	GradientsAddress string    `db:"gradients_address"`
	TxHash           string    `db:"tx_hash"`
	GasUsed          int64     `db:"gas_used"`
	SubmittedAt      time.Time `db:"submitted_at"`
}

func (r *submissionRepo) Save(ctx context.Context, s storage.Submission) error {
	if s.WeightsAddress == "" {
		return pkgerrors.ErrEmptyKey
	}

	query := `INSERT INTO submissions (model_id, weights_address, gradients_address, tx_hash, gas_used, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (model_id, weights_address) DO UPDATE SET
			gradients_address = excluded.gradients_address,
			tx_hash = excluded.tx_hash,
			gas_used = excluded.gas_used,
			submitted_at = excluded.submitted_at`

	_, err := r.db.ExecContext(ctx, query,
		int64(s.ModelID), s.WeightsAddress, s.GradientsAddress,
		s.TxHash, int64(s.GasUsed), s.SubmittedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrCreate, err)
	}

	return nil
}

func (r *submissionRepo) Get(ctx context.Context, modelID uint64, weightsAddress string) (storage.Submission, error) {
	if weightsAddress == "" {
		return storage.Submission{}, pkgerrors.ErrEmptyKey
	}

	query := `SELECT model_id, weights_address, gradients_address, tx_hash, gas_used, submitted_at
		FROM submissions WHERE model_id = $1 AND weights_address = $2`

	var dbs dbSubmission
	if err := r.db.GetContext(ctx, &dbs, query, int64(modelID), weightsAddress); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Submission{}, pkgerrors.ErrNotFound
		}

		return storage.Submission{}, fmt.Errorf("%w: %w", storage.ErrDBQuery, err)
	}

	return dbs.toSubmission(), nil
}

func (r *submissionRepo) List(ctx context.Context, offset, limit uint64) (storage.SubmissionPage, error) {
	page := storage.SubmissionPage{
		Offset: offset,
		Limit:  limit,
	}

	if err := r.db.GetContext(ctx, &page.Total, `SELECT COUNT(*) FROM submissions`); err != nil {
		return storage.SubmissionPage{}, fmt.Errorf("%w: %w", storage.ErrDBQuery, err)
	}

	query := `SELECT model_id, weights_address, gradients_address, tx_hash, gas_used, submitted_at
		FROM submissions ORDER BY model_id, weights_address LIMIT $1 OFFSET $2`

	var rows []dbSubmission
	if err := r.db.SelectContext(ctx, &rows, query, int64(limit), int64(offset)); err != nil {
		return storage.SubmissionPage{}, fmt.Errorf("%w: %w", storage.ErrDBQuery, err)
	}

	for _, row := range rows {
		page.Submissions = append(page.Submissions, row.toSubmission())
	}

	return page, nil
}

func (r *submissionRepo) Close() error {
	return r.db.Close()
}

func (dbs dbSubmission) toSubmission() storage.Submission {
	return storage.Submission{
		ModelID:          uint64(dbs.ModelID),
		WeightsAddress:   dbs.WeightsAddress,
		GradientsAddress: dbs.GradientsAddress,
		TxHash:           dbs.TxHash,
		GasUsed:          uint64(dbs.GasUsed),
		SubmittedAt:      dbs.SubmittedAt.UTC(),
	}
}
