package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/concept"
	"github.com/p-n-ai/pai-progress/internal/platform/config"
	"github.com/p-n-ai/pai-progress/internal/report"
)

func newExportCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's concept progress to an XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			out, _ := cmd.Flags().GetString("out")
			conceptsPath, _ := cmd.Flags().GetString("concepts")
			if conceptsPath == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				conceptsPath = cfg.ConceptsPath
			}

			catalog, err := concept.Load(conceptsPath)
			if err != nil {
				return fmt.Errorf("load concepts: %w", err)
			}

			b, err := openBackend(cmd, open)
			if err != nil {
				return err
			}
			defer b.close()

			recs, err := b.progress.ListByUser(cmd.Context(), user)
			if err != nil {
				return fmt.Errorf("list progress: %w", err)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := report.WriteProgress(f, recs, catalog.Name); err != nil {
				f.Close()
				return fmt.Errorf("write report: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d concepts to %s\n", len(recs), out)
			return nil
		},
	}

	cmd.Flags().String("user", "", "User id to export")
	cmd.Flags().String("out", "progress.xlsx", "Output file")
	cmd.Flags().String("concepts", "", "Concept catalog directory (overrides LEARN_CONCEPTS_PATH)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
