package mine

import (
	"fmt"
	"path/filepath"

	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/pkg/storage/badger"
	"github.com/openmined/mine/pkg/storage/postgres"
	"github.com/openmined/mine/pkg/storage/sqlite"
)

// NewLedger opens the submission ledger the daemon configuration names. An
// empty ledger type means memory.
func NewLedger(cfg DaemonConfig) (storage.SubmissionRepository, error) {
	switch cfg.Ledger {
	case storage.TypeMemory, "":
		return storage.NewInMemoryRepository(), nil
	case storage.TypeBadger:
		return badger.NewRepository(cfg.LedgerDir)
	case storage.TypeSQLite:
		db, err := sqlite.NewDatabase(filepath.Join(cfg.LedgerDir, sqlite.DefaultFile))
		if err != nil {
			return nil, err
		}

		return sqlite.NewRepository(db), nil
	case storage.TypePostgres:
		db, err := postgres.NewDatabase(cfg.LedgerURL)
		if err != nil {
			return nil, err
		}

		return postgres.NewRepository(db), nil
	default:
		return nil, fmt.Errorf("%w: %s", storage.ErrUnsupported, cfg.Ledger)
	}
}
