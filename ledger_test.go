package mine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/mine"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/pkg/storage/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLedger(t *testing.T) {
	cases := []struct {
		desc string
		cfg  mine.DaemonConfig
		file string
		err  error
	}{
		{
			desc: "default to memory",
		},
		{
			desc: "badger",
			cfg:  mine.DaemonConfig{Ledger: storage.TypeBadger},
			file: "MANIFEST",
		},
		{
			desc: "sqlite",
			cfg:  mine.DaemonConfig{Ledger: storage.TypeSQLite},
			file: "ledger.db",
		},
		{
			desc: "postgres without url",
			cfg:  mine.DaemonConfig{Ledger: storage.TypePostgres},
			err:  postgres.ErrEmptyURL,
		},
		{
			desc: "unknown",
			cfg:  mine.DaemonConfig{Ledger: "mongodb"},
			err:  storage.ErrUnsupported,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			dir := t.TempDir()
			tc.cfg.LedgerDir = dir

			ledger, err := mine.NewLedger(tc.cfg)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			defer ledger.Close()

			page, err := ledger.List(context.Background(), 0, 10)
			require.NoError(t, err)
			assert.Zero(t, page.Total)

			if tc.file != "" {
				_, err := os.Stat(filepath.Join(dir, tc.file))
				assert.NoError(t, err)
			}
		})
	}
}
