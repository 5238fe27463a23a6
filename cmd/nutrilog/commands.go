// cmd/nutrilog/commands.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nutrilog/internal/logstore"
	"nutrilog/internal/models"
	"nutrilog/internal/server"
)

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "nutrilog",
		Short:         "Log food and track daily nutrient totals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.dbPath, "db-path", "", "Database path (overrides config)")
	root.PersistentFlags().StringVar(&opts.logMode, "log-mode", "", "Log mode: dev or prod")

	root.AddCommand(
		newServeCmd(opts),
		newAddCmd(opts),
		newListCmd(opts),
		newRemoveCmd(opts),
		newClearCmd(opts),
		newSuggestCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "nutrilog version %s\n", server.Version)
			},
		},
	)
	return root
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if cmd.Flags().Changed("host") {
					a.cfg.Server.Host = host
				}
				if cmd.Flags().Changed("port") {
					a.cfg.Server.Port = port
				}

				srv := server.NewNutritionServer(&server.Config{Addr: a.cfg.Server.Addr()}, a.store, a.gateway, a.log.With("component", "server"))

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return srv.Start(ctx)
				})
				g.Go(func() error {
					<-ctx.Done()
					a.log.Info("shutting down")
					return srv.Stop()
				})
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Host address")
	cmd.Flags().IntVar(&port, "port", 8011, "Port for HTTP transport")
	return cmd
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <food description>",
		Short: "Look up a food and add it to the log",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res, err := a.store.Search(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch res.Outcome {
				case logstore.OutcomeAdded:
					for _, item := range res.Added {
						fmt.Fprintf(out, "Added %s (%s)\n", item.Name, item.ID)
					}
				case logstore.OutcomeNoResults:
					fmt.Fprintf(out, "No nutrition data found for %q\n", res.Query)
				case logstore.OutcomeFailed:
					fmt.Fprintf(out, "Lookup failed for %q, nothing added\n", res.Query)
				}
				printTotals(out, a.store.Totals())
				return nil
			})
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show today's log and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				items := a.store.Items()
				if len(items) == 0 {
					fmt.Fprintln(out, "No food logged yet today.")
				} else {
					printItems(out, items)
				}
				printTotals(out, a.store.Totals())
				return nil
			})
		},
	}
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove one logged item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				removed, err := a.store.Remove(ctx, args[0])
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "No item with id %s\n", args[0])
				}
				return nil
			})
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Erase the whole log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				confirm := logstore.Always
				if !yes {
					confirm = promptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
				}
				cleared, err := a.store.ClearAll(ctx, confirm)
				if err != nil {
					return err
				}
				if cleared {
					fmt.Fprintln(cmd.OutOrStdout(), "Log cleared.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing changed.")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newSuggestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <text>",
		Short: "Suggest previously logged food names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				for _, name := range a.store.Suggest(strings.Join(args, " ")) {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}

// promptConfirmer asks on out and accepts y or yes from in.
func promptConfirmer(in io.Reader, out io.Writer) logstore.Confirmer {
	return logstore.ConfirmFunc(func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}

func printItems(out io.Writer, items []models.NutritionItem) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSERVING\tKCAL\tPROTEIN\tCARBS\tFAT")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%.0fg\t%.0f\t%.1fg\t%.1fg\t%.1fg\n",
			item.ID, item.Name, item.ServingSizeG, item.Calories, item.ProteinG, item.CarbsTotalG, item.FatTotalG)
	}
	tw.Flush()
}

func printTotals(out io.Writer, t models.Totals) {
	fmt.Fprintf(out, "Totals: %.0f kcal | P: %.0fg | C: %.0fg | F: %.0fg\n", t.Calories, t.Protein, t.Carbs, t.Fat)
}
