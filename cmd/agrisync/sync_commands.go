package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"agrisync/internal/api"
	"agrisync/internal/ipc"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Drain the queue now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SyncNow()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Busy {
					fmt.Fprintln(out, "Sync already in progress")
					return nil
				}
				if asJSON {
					return writeJSON(cmd, resp.Report)
				}
				printSyncReport(out, resp.Report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printSyncReport(out io.Writer, report api.SyncReport) {
	if report.Attempted == 0 && report.Remaining > 0 {
		fmt.Fprintf(out, "Offline: %d item(s) waiting\n", report.Remaining)
		return
	}
	rows := [][]string{
		{"Attempted", fmt.Sprintf("%d", report.Attempted)},
		{"Completed", fmt.Sprintf("%d", report.Completed)},
		{"Failed", fmt.Sprintf("%d", report.Failed)},
		{"Remaining", fmt.Sprintf("%d", report.Remaining)},
		{"Duration", (time.Duration(report.DurationMS) * time.Millisecond).String()},
	}
	if report.Aborted {
		rows = append(rows, []string{"Aborted", "yes (connection lost)"})
	}
	fmt.Fprint(out, renderTable([]string{"Sync", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
	fmt.Fprintln(out)
}

func newNetworkCommand(ctx *commandContext) *cobra.Command {
	networkCmd := &cobra.Command{
		Use:   "network",
		Short: "Inspect or override connectivity state",
	}

	networkCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the daemon's connectivity view",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				printNetworkStatus(cmd.OutOrStdout(), status.Network)
				return nil
			})
		},
	})

	for _, state := range []struct {
		use    string
		short  string
		online bool
	}{
		{"online", "Report that connectivity is available (triggers a drain)", true},
		{"offline", "Report that connectivity was lost", false},
	} {
		networkCmd.AddCommand(&cobra.Command{
			Use:   state.use,
			Short: state.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return ctx.withClient(func(client *ipc.Client) error {
					resp, err := client.SetNetwork(state.online)
					if err != nil {
						return err
					}
					if !resp.Changed {
						fmt.Fprintln(cmd.OutOrStdout(), "Connectivity unchanged")
					}
					printNetworkStatus(cmd.OutOrStdout(), resp.Network)
					return nil
				})
			},
		})
	}

	return networkCmd
}

func printNetworkStatus(out io.Writer, status api.NetworkStatus) {
	state := "offline"
	if status.Online {
		state = "online"
	}
	fmt.Fprintf(out, "Network: %s", state)
	if status.ChangedAt != "" {
		fmt.Fprintf(out, " (since %s)", formatDisplayTime(status.ChangedAt))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Subscribers: %d\n", status.Subscribers)
}
