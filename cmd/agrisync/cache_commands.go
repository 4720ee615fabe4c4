package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agrisync/internal/queueaccess"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Read and write offline data snapshots",
	}

	var getJSON bool
	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a cached snapshot and its age",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(b queueaccess.Access) error {
				entry, err := b.CacheGet(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if entry == nil {
					return fmt.Errorf("no cached data for %q", args[0])
				}
				if getJSON {
					return writeJSON(cmd, entry)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Key:     %s\n", entry.Key)
				fmt.Fprintf(out, "Stored:  %s (%s ago)\n", formatDisplayTime(entry.Timestamp), formatAge(entry.AgeSeconds))
				fmt.Fprintf(out, "Data:    %s\n", entry.Data)
				return nil
			})
		},
	}
	getCmd.Flags().BoolVar(&getJSON, "json", false, "Output the entry as JSON")
	cacheCmd.AddCommand(getCmd)

	var payloadFile string
	putCmd := &cobra.Command{
		Use:   "put <key> [data-json]",
		Short: "Store a snapshot under key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readPayload(cmd.InOrStdin(), args[1:], payloadFile)
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd.Context(), func(b queueaccess.Access) error {
				entry, err := b.CachePut(cmd.Context(), args[0], data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cached %s at %s\n", entry.Key, formatDisplayTime(entry.Timestamp))
				return nil
			})
		},
	}
	putCmd.Flags().StringVarP(&payloadFile, "file", "f", "", "Read data JSON from a file ('-' for stdin)")
	cacheCmd.AddCommand(putCmd)

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "List cached keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(b queueaccess.Access) error {
				keys, err := b.CacheKeys(cmd.Context())
				if err != nil {
					return err
				}
				if len(keys) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty")
					return nil
				}
				for _, key := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				return nil
			})
		},
	})

	return cacheCmd
}
