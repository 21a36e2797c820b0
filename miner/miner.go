// Package miner drives the training cycle of a mining node: it connects to
// the chain and the content store, enumerates the models published on the
// Sonar contract, trains them with an external trainer and submits the
// resulting gradients.
package miner

import (
	"context"
	"io"

	"github.com/openmined/mine/pkg/eth"
	"github.com/openmined/mine/pkg/ipfs"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/sonar"
)

// AutoAddress resolves the operator to the first account of the node.
const AutoAddress = "auto"

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Service interface {
	// Connect resolves the operator, prepares the chain account and opens
	// the content store. It emits exactly one connect or error event.
	Connect(ctx context.Context, dataDir, passwordFile string) error
	// Models returns every model of the contract keyed by its id.
	Models(ctx context.Context) (map[uint64]sonar.Model, error)
	Model(ctx context.Context, id uint64) (sonar.Model, error)
	// Train runs one training cycle for model and submits the gradient.
	Train(ctx context.Context, model sonar.Model) (sonar.Receipt, error)
	Submissions(ctx context.Context, offset, limit uint64) (storage.SubmissionPage, error)
	State() State
	Operator() string
}

// Chain is the blockchain client used to resolve and unlock the operator.
type Chain interface {
	Accounts(ctx context.Context) ([]eth.Address, error)
	Connect(ctx context.Context, operator eth.Address, dataDir, passwordFile string) error
}

type Gateway interface {
	ModelCount(ctx context.Context) (uint64, error)
	Model(ctx context.Context, id uint64) (sonar.Model, error)
	Gradient(ctx context.Context, modelID, index uint64) (sonar.Gradient, error)
	AddGradient(ctx context.Context, modelID uint64, gradientsAddress string) (sonar.Receipt, error)
}

// GatewayFactory binds a gateway to the contract and the resolved operator.
type GatewayFactory func(contract, operator eth.Address) Gateway

type Store interface {
	IsOnline() bool
	Get(ctx context.Context, address string, w io.Writer) error
	Add(ctx context.Context, files ...ipfs.File) ([]ipfs.AddResult, error)
}

type StoreDialer interface {
	Connect(ctx context.Context) (Store, error)
}

type StoreDialerFunc func(ctx context.Context) (Store, error)

func (f StoreDialerFunc) Connect(ctx context.Context) (Store, error) {
	return f(ctx)
}

type Enrichment struct {
	Enabled bool
	// MinGradients is the gradient count a model must exceed before its
	// latest gradient is looked up.
	MinGradients uint64
}

type Config struct {
	// Address is the operator account, or AutoAddress.
	Address  string
	Contract string
	Debug    bool

	WorkspaceDir string
	// Files maps workspace keys such as "model" and "gradient" to file names.
	Files map[string]string
	// Cleanup removes the workspace after a successful submission.
	Cleanup    bool
	InputData  string
	TargetData string

	Enrichment Enrichment
}
