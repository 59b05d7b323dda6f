package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ytdigest",
	Short: "Turn videos into transcripts, chunks, embeddings and study notes",
	Long: `ytdigest acquires the transcript of a YouTube video or an uploaded file,
translates it to English, cleans it, splits it into overlapping chunks and
embeds them. Summaries and notes are generated on demand.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional
		_ = godotenv.Load()
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.ytdigest/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "o", "text", "Output format (text, json)")
}
