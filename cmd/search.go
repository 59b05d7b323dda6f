package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [RUN_ID] [QUERY]",
	Short: "Find the chunks of a run closest to a query",
	Long: `Embed QUERY with the configured model and return the nearest chunks of
a run from the pgvector table. Requires database_url and embedding settings.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		k, _ := cmd.Flags().GetInt("k")

		return withApp(ctx, func(a *app) error {
			formatter, err := a.formatter()
			if err != nil {
				return err
			}
			repo := a.vectorMirror()
			if repo == nil {
				return errors.New("search needs database_url with embedding.store_in_database enabled")
			}

			vectors, err := a.embeddings().Embed(ctx, []string{args[1]})
			if err != nil {
				return fmt.Errorf("failed to embed query: %w", err)
			}
			matches, err := repo.Search(ctx, args[0], vectors[0], k)
			if err != nil {
				return fmt.Errorf("failed to search chunks: %w", err)
			}
			out, err := formatter.Matches(matches)
			if err != nil {
				return err
			}
			cmd.Print(out)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().Int("k", 5, "Number of chunks to return")
}
