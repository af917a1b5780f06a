package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/quiz"
)

func newBackfillCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Re-derive concept progress from stored quiz histories",
		Long: "Replays every stored quiz answer through the confidence updater, oldest quiz first.\n" +
			"Scores are adjusted on top of existing progress, so running it twice counts every answer twice.",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			all, _ := cmd.Flags().GetBool("all")

			b, err := openBackend(cmd, open)
			if err != nil {
				return err
			}
			defer b.close()

			svc := quiz.NewService(b.quizzes, b.updater())

			results := make(map[string]quiz.BackfillResult)
			if all {
				results, err = svc.BackfillAll(cmd.Context())
				if err != nil {
					return fmt.Errorf("backfill: %w", err)
				}
			} else {
				res, err := svc.Backfill(cmd.Context(), user)
				if err != nil {
					return fmt.Errorf("backfill %s: %w", user, err)
				}
				results[user] = res
			}

			printBackfill(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().String("user", "", "Backfill a single user id")
	cmd.Flags().Bool("all", false, "Backfill every user with stored quiz histories")
	cmd.MarkFlagsMutuallyExclusive("user", "all")
	cmd.MarkFlagsOneRequired("user", "all")
	return cmd
}

func printBackfill(w io.Writer, results map[string]quiz.BackfillResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No quiz histories found.")
		return
	}

	users := make([]string, 0, len(results))
	for u := range results {
		users = append(users, u)
	}
	sort.Strings(users)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tHISTORIES\tCREATED\tUPDATED\tSKIPPED")

	var total quiz.BackfillResult
	for _, u := range users {
		r := results[u]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", u, r.Histories, r.Created, r.Updated, r.Skipped)
		total.Histories += r.Histories
		total.Add(r.BatchResult)
	}
	if len(users) > 1 {
		fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%d\t%d\n", total.Histories, total.Created, total.Updated, total.Skipped)
	}
	_ = tw.Flush()
}
