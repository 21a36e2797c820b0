package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/openmined/mine"
	"github.com/openmined/mine/pkg/server"
	"github.com/openmined/mine/sonar"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	defOffset uint64 = 0
	defLimit  uint64 = 10

	cfg    = mine.DefaultConfig()
	logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
)

// SetConfig sets the configuration commands run with.
func SetConfig(c mine.Config) {
	cfg = c
}

func SetLogger(l *slog.Logger) {
	logger = l
}

// NewStartCmd runs the node until it is interrupted: the daemon polls for
// models while the HTTP API serves state and on-demand training.
func NewStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start mining",
		Long:  `Connect to the chain and IPFS, then train every model that has not been trained yet.`,
		Run: func(cmd *cobra.Command, _ []string) {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, ctx := errgroup.WithContext(ctx)

			n, err := newConnectedNode(ctx)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			defer closeNode(*cmd, n)

			var servers []server.Server
			if cfg.HTTP.Port != "" {
				hs := server.NewHTTPServer(ctx, cancel, mine.SvcName, cfg.HTTP, n.Handler(), logger)
				servers = append(servers, hs)
				g.Go(hs.Start)
			}

			g.Go(func() error {
				err := n.Daemon.Run(ctx)
				if len(servers) == 0 {
					// Nothing else keeps the node running.
					cancel()
				}

				return err
			})

			g.Go(func() error {
				return server.StopSignalHandler(ctx, cancel, logger, mine.SvcName, servers...)
			})

			if err := g.Wait(); err != nil {
				logger.Error(fmt.Sprintf("%s service exited with error: %s", mine.SvcName, err))
			}
		},
	}
}

func NewModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models",
		Long:  `List every model registered in the Sonar contract.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			n, err := newConnectedNode(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			defer closeNode(*cmd, n)

			models, err := n.Service.Models(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			list := make([]sonar.Model, 0, len(models))
			for _, id := range slices.Sorted(maps.Keys(models)) {
				list = append(list, models[id])
			}
			logJSONCmd(*cmd, list)
		},
	}
}

func NewTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train <model_id>",
		Short: "Train a model",
		Long:  `Train a single model and submit its gradient, whether or not it was trained before.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("invalid model id %q: %w", args[0], err))

				return
			}

			n, err := newConnectedNode(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			defer closeNode(*cmd, n)

			model, err := n.Service.Model(cmd.Context(), id)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			receipt, err := n.Service.Train(cmd.Context(), model)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, receipt)
		},
	}
}

func NewSubmissionsCmd() *cobra.Command {
	var offset, limit uint64

	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List submissions",
		Long:  `List the gradients this node has submitted, as recorded in the local ledger.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			ledger, err := mine.NewLedger(cfg.Daemon)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			defer ledger.Close()

			page, err := ledger.List(cmd.Context(), offset, limit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.Flags().Uint64VarP(&offset, "offset", "o", defOffset, "Offset")
	cmd.Flags().Uint64VarP(&limit, "limit", "l", defLimit, "Limit")

	return cmd
}

func newConnectedNode(ctx context.Context) (*mine.Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n, err := mine.NewNode(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := n.Connect(ctx); err != nil {
		return nil, errors.Join(err, n.Close(ctx))
	}

	return n, nil
}

func closeNode(cmd cobra.Command, n *mine.Node) {
	if err := n.Close(context.Background()); err != nil {
		logErrorCmd(cmd, err)
	}
}
