// Command octofit prints the OctoFit views in a terminal and edits users.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/octofit/internal/client"
	"example.com/octofit/internal/config"
	"example.com/octofit/internal/logging"
)

type app struct {
	apiURL  string
	token   string
	timeout time.Duration
	verbose bool

	out    io.Writer
	logger *zap.Logger
	api    *client.Client
}

func newRootCmd(out io.Writer) *cobra.Command {
	cfg := config.Load()
	a := &app{out: out, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "octofit",
		Short:         "OctoFit Tracker from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.verbose {
				logger, err := logging.New("debug", "octofit-cli")
				if err != nil {
					return err
				}
				a.logger = logger
			}
			a.api = client.New(a.apiURL,
				client.WithToken(a.token),
				client.WithTimeout(a.timeout),
				client.WithLogger(a.logger),
			)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", cfg.APIBaseURL(), "OctoFit API base URL")
	flags.StringVar(&a.token, "token", cfg.APIToken, "bearer token sent with every request")
	flags.DurationVar(&a.timeout, "timeout", cfg.UpstreamTimeout, "per-request timeout")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests and payloads to stderr")

	root.AddCommand(
		a.usersCmd(),
		a.listCmd("teams", "Show teams", a.printTeams),
		a.listCmd("workouts", "Show workouts", a.printWorkouts),
		a.listCmd("activities", "Show activities", a.printActivities),
		a.listCmd("leaderboard", "Show the leaderboard", a.printLeaderboard),
	)
	return root
}

func (a *app) listCmd(use, short string, run func(ctx context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
