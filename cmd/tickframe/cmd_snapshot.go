package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/tickframe/internal/snapshot"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect substrate snapshot files",
	}
	cmd.AddCommand(newSnapshotInfoCmd(), newSnapshotVerifyCmd())
	return cmd
}

func newSnapshotInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Print a snapshot's header without decoding it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			header, err := snapshot.ReadHeader(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, header)
			}
			fmt.Fprintf(out, "File:     %s\n", args[0])
			fmt.Fprintf(out, "Version:  %d\n", header.Version)
			fmt.Fprintf(out, "Created:  %s\n", header.CreatedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "Tick:     %d\n", header.Tick)
			fmt.Fprintf(out, "Entities: %d\n", header.Entities)
			fmt.Fprintf(out, "Edges:    %d\n", header.Edges)
			fmt.Fprintf(out, "Cells:    %d\n", header.Cells)
			keys := make([]string, 0, len(header.Metadata))
			for k := range header.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %s\n", k, header.Metadata[k])
			}
			return nil
		},
	}
}

func newSnapshotVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a snapshot's checksum",
		Long: `Verify the integrity of a snapshot file by checking the SHA-256 checksum
recorded in its header against the compressed payload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			if err := snapshot.Verify(filePath); err != nil {
				if jsonOut {
					if encErr := printJSON(out, map[string]interface{}{
						"file":    filePath,
						"valid":   false,
						"error":   err.Error(),
						"message": "Checksum verification FAILED",
					}); encErr != nil {
						return encErr
					}
				} else {
					fmt.Fprintf(out, "FAILED: %v\n", err)
					fmt.Fprintf(out, "  File: %s\n", filePath)
				}
				return fmt.Errorf("checksum verification failed")
			}

			if jsonOut {
				return printJSON(out, map[string]interface{}{
					"file":    filePath,
					"valid":   true,
					"message": "Checksum OK",
				})
			}
			fmt.Fprintf(out, "OK: checksum verified\n")
			fmt.Fprintf(out, "  File: %s\n", filePath)
			return nil
		},
	}
}
