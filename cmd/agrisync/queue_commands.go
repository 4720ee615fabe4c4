package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agrisync/internal/api"
	"agrisync/internal/queue"
	"agrisync/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage queued requests",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(b queueaccess.Access) error {
				health, err := b.Health(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueHealthRows(health)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued requests (undelivered items by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := listStatuses
			if all {
				statuses = allStatusNames()
			}
			return ctx.withAccess(cmd.Context(), func(b queueaccess.Access) error {
				items, err := b.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.SortQueueItemsOldestFirst(items))
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(queueListHeaders, buildQueueListRows(items), queueListAlign))
				fmt.Fprintln(out)
				if b.Mode() == queueaccess.ModeOffline {
					fmt.Fprintln(out, "(daemon not running; read from local store)")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include completed items")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a queued request including its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(b queueaccess.Access) error {
				id, err := resolveItemID(cmd.Context(), b, args[0])
				if err != nil {
					return err
				}
				item, err := b.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("queue item %s not found", args[0])
				}
				if asJSON {
					return writeJSON(cmd, item)
				}
				for _, line := range queueItemDetailLines(*item) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Return failed requests to pending (all failed items when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(b queueaccess.Access) error {
				ids, err := resolveItemIDs(cmd.Context(), b, args)
				if err != nil {
					return err
				}
				updated, err := b.Retry(cmd.Context(), ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case updated == 0 && len(ids) == 0:
					fmt.Fprintln(out, "No failed items to retry")
				case updated == 0:
					fmt.Fprintln(out, "No matching failed items")
				default:
					fmt.Fprintf(out, "Retrying %d item(s)\n", updated)
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove queued requests regardless of status",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(b queueaccess.Access) error {
				ids, err := resolveItemIDs(cmd.Context(), b, args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for i, id := range ids {
					removed, err := b.Remove(cmd.Context(), id)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(out, "Removed %s\n", api.ShortID(id))
					} else {
						fmt.Fprintf(out, "Item %s not found\n", args[i])
					}
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every queued request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("refusing to drop queued requests without --force")
			}
			return ctx.withAccess(cmd.Context(), func(b queueaccess.Access) error {
				removed, err := b.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d queue items\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm removal of every item")
	return cmd
}

func allStatusNames() []string {
	statuses := queue.AllStatuses()
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

func resolveItemIDs(ctx context.Context, b queueaccess.Access, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id, err := resolveItemID(ctx, b, arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveItemID expands the short id printed by `queue list` to a full id.
// Arguments that match nothing are returned unchanged.
func resolveItemID(ctx context.Context, b queueaccess.Access, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("queue item id required")
	}
	items, err := b.List(ctx, allStatusNames())
	if err != nil {
		return "", err
	}
	var matches []string
	for _, item := range items {
		if item.ID == arg {
			return arg, nil
		}
		if strings.HasSuffix(item.ID, arg) {
			matches = append(matches, item.ID)
		}
	}
	switch len(matches) {
	case 0:
		return arg, nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("id %q is ambiguous (%d matches)", arg, len(matches))
	}
}
