package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"rdv-service/internal/service"
)

// withApp bootstraps, runs fn and closes the app.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := Bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var date, search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				var (
					res service.ListResult
					err error
				)
				switch {
				case date != "":
					res, err = app.Appointments.GetByDate(ctx, date)
				case search != "":
					res, err = app.Appointments.Search(ctx, search)
				default:
					res, err = app.Appointments.GetAll(ctx)
				}
				if err != nil {
					return err
				}
				printAppointments(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "only this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&search, "search", "", "client name, phone or notes")
	return cmd
}

func printAppointments(w io.Writer, res service.ListResult) {
	for _, a := range res.Appointments {
		marker := ""
		if a.SyncPending {
			marker = " *"
		}
		fmt.Fprintf(w, "%s %s  %-24s %-12s %-7s %s%s\n", a.Date, a.Time, a.ClientName, a.Status, a.PaymentStatus, a.ID, marker)
	}
	fmt.Fprintf(w, "%d appointment(s) from %s\n", len(res.Appointments), res.Source)
}

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string
	var upload bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the local store as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				if upload {
					url, err := app.Reconciler.UploadExport(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), url)
					return nil
				}
				blob, err := app.Local.Export(ctx)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(append(blob, '\n'))
					return err
				}
				return os.WriteFile(output, blob, 0o600)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload to the R2 backup bucket")
	return cmd
}

func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the local store with an export document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				n, err := app.Local.Import(ctx, blob)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d appointment(s) imported\n", n)
				return nil
			})
		},
	}
}

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push pending local appointments to the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				res, err := app.Reconciler.Reconcile(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d/%d appointment(s) synchronized\n", res.Synced, res.Total)
				return nil
			})
		},
	}
}

func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show local store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"appointments": app.Local.Stats(ctx),
					"data":         app.Appointments.DataStats(ctx),
					"storage":      app.Local.Size(ctx),
				})
			})
		},
	}
}

func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove completed appointments older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < -1 {
				return fmt.Errorf("invalid --days %d", days)
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				if days == -1 {
					days = app.Config.RetentionDays
				}
				removed, err := app.Local.Cleanup(ctx, days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d completed appointment(s) removed (older than %d days)\n", removed, days)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", -1, "retention in days (default RETENTION_DAYS)")
	return cmd
}
