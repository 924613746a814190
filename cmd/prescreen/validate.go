// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trial-prescreen/internal/ingest"
)

var validateCmd = &cobra.Command{
	Use:   "validate <protocol>...",
	Short: "Check that protocol files can be read and normalized",
	Long: `Validate reads each protocol, parses its frontmatter, and reports the
document ID and page estimate it would be screened under. It exits non-zero
if any file fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, result := ingest.ReadDocuments(args, cmd.OutOrStdout())
	if result.HasFailures() {
		return fmt.Errorf("%d of %d protocols failed", result.Failed, result.Total())
	}
	return nil
}
