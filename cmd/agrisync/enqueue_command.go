package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"agrisync/internal/queueaccess"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var payloadFile string

	cmd := &cobra.Command{
		Use:   "enqueue <kind> [payload-json]",
		Short: "Queue a diagnosis, market_query or advisory_query request",
		Long: "Queue a request for delivery to the inference service.\n\n" +
			"The payload is a JSON object given inline, read from --file, or read from stdin\n" +
			"when --file is '-'. Requests queue even when the daemon is not running.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), args[1:], payloadFile)
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd.Context(), func(b queueaccess.Access) error {
				id, err := b.Enqueue(cmd.Context(), args[0], payload)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued %s (%s)\n", id, strings.TrimSpace(args[0]))
				if b.Mode() == queueaccess.ModeOffline {
					fmt.Fprintln(out, "Daemon not running; the request will sync once `agrisync start` runs")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&payloadFile, "file", "f", "", "Read payload JSON from a file ('-' for stdin)")
	return cmd
}

func readPayload(stdin io.Reader, inline []string, file string) (json.RawMessage, error) {
	var data []byte
	switch {
	case len(inline) > 0 && file != "":
		return nil, errors.New("pass the payload inline or with --file, not both")
	case len(inline) > 0:
		data = []byte(inline[0])
	case file == "-":
		read, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		data = read
	case file != "":
		read, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		data = read
	default:
		return nil, errors.New("payload required")
	}
	if !json.Valid(data) {
		return nil, errors.New("payload is not valid JSON")
	}
	return json.RawMessage(data), nil
}
