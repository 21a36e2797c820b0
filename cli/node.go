package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/openmined/mine/pkg/sdk"
	"github.com/spf13/cobra"
)

const defTLSVerification = true

var msdk sdk.SDK

// SetSDK overrides the client the node commands talk through.
func SetSDK(s sdk.SDK) {
	msdk = s
}

// NewNodeCmd talks to a node started with `mine start` over its HTTP API.
func NewNodeCmd() *cobra.Command {
	var (
		nodeURL  string
		insecure bool
	)

	cmd := &cobra.Command{
		Use:   "node [state|models|model|train|submissions]",
		Short: "Running node",
		Long:  `Query and drive a running node through its HTTP API.`,
	}

	cmd.PersistentFlags().StringVarP(&nodeURL, "url", "u", "", "Node API URL (defaults to the configured HTTP address)")
	cmd.PersistentFlags().BoolVar(&insecure, "insecure", !defTLSVerification, "Skip TLS certificate verification")

	client := func() sdk.SDK {
		if msdk != nil {
			return msdk
		}
		url := nodeURL
		if url == "" {
			host := cfg.HTTP.Host
			if host == "" {
				host = "localhost"
			}
			url = "http://" + net.JoinHostPort(host, cfg.HTTP.Port)
		}

		return sdk.NewSDK(sdk.Config{
			NodeURL:         url,
			TLSVerification: !insecure,
		})
	}

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Node state",
		Long:  `Show the connection state and operator of the node.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			s, err := client().State()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, s)
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List models",
		Long:  `List the models the node sees on the contract.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := client().Models()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	modelCmd := &cobra.Command{
		Use:   "model <model_id>",
		Short: "View model",
		Long:  `View a single model.`,
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

			m, err := client().Model(id)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}

	trainCmd := &cobra.Command{
		Use:   "train <model_id>",
		Short: "Train model",
		Long:  `Ask the node to train a model and submit the gradient.`,
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

			r, err := client().Train(id)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	var offset, limit uint64
	submissionsCmd := &cobra.Command{
		Use:   "submissions",
		Short: "List submissions",
		Long:  `List the gradients the node has submitted.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := client().Submissions(offset, limit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}
	submissionsCmd.Flags().Uint64VarP(&offset, "offset", "o", defOffset, "Offset")
	submissionsCmd.Flags().Uint64VarP(&limit, "limit", "l", defLimit, "Limit")

	cmd.AddCommand(stateCmd, modelsCmd, modelCmd, trainCmd, submissionsCmd)

	return cmd
}
