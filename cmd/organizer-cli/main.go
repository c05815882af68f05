// Package main provides an operator CLI for the album organizer pipeline.
//
// It runs the same trigger evaluation, list building, and categorization
// pass as the deployed Lambdas, against real AWS resources, which makes it
// useful for inspecting a user's state and for replaying a stuck sort
// without going through the state machine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/albumlab/album-organizer/internal/lambdaboot"
	"github.com/albumlab/album-organizer/internal/logging"
	"github.com/albumlab/album-organizer/internal/oracle"
	"github.com/albumlab/album-organizer/internal/s3util"
	"github.com/albumlab/album-organizer/internal/sorter"
	"github.com/albumlab/album-organizer/internal/store"
)

// CLI flags
var (
	userFlag   string
	bucketFlag string
	dryRunFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "organizer-cli",
	Short: "Operate the album organizer pipeline from the command line",
	Long: `organizer-cli inspects and drives the album categorization pipeline.

Table names come from METADATA_TABLE_NAME and STATS_TABLE_NAME; the Gemini
API key from GEMINI_API_KEY or SSM.

Examples:
  organizer-cli stats --user alice
  organizer-cli trigger --user alice
  organizer-cli sort --user alice --bucket album-media-prod
  organizer-cli sort --user alice --bucket album-media-prod --dry-run`,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a user's stats record",
	Run:   runStats,
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Evaluate the sort trigger rules for a user",
	Run:   runTrigger,
}

var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Run a full categorization pass for a user",
	Run:   runSort,
}

func init() {
	for _, cmd := range []*cobra.Command{statsCmd, triggerCmd, sortCmd} {
		cmd.Flags().StringVarP(&userFlag, "user", "u", "", "User ID (required)")
		cmd.MarkFlagRequired("user")
		rootCmd.AddCommand(cmd)
	}
	sortCmd.Flags().StringVarP(&bucketFlag, "bucket", "b", "", "Album media bucket (required for first-time sorts)")
	sortCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Run the pass but skip the settle write")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initStore builds the DynamoDB-backed store from the environment.
func initStore() *store.DynamoStore {
	logging.Init()
	awsClients := lambdaboot.InitAWS()
	return lambdaboot.InitAlbumStore(awsClients.Config, "METADATA_TABLE_NAME", "STATS_TABLE_NAME")
}

func runStats(cmd *cobra.Command, args []string) {
	albumStore := initStore()

	stats, err := albumStore.GetStats(context.Background(), userFlag)
	if err != nil {
		log.Fatal().Err(err).Str("userId", userFlag).Msg("Failed to read stats")
	}
	if stats == nil {
		fmt.Printf("No stats record for user %s\n", userFlag)
		return
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render stats")
	}
	fmt.Println(string(out))
}

func runTrigger(cmd *cobra.Command, args []string) {
	albumStore := initStore()

	stats, err := albumStore.GetStats(context.Background(), userFlag)
	if err != nil {
		log.Fatal().Err(err).Str("userId", userFlag).Msg("Failed to read stats")
	}

	decision := sorter.EvaluateTrigger(stats, time.Now())
	if decision.Run {
		fmt.Printf("User %s would trigger a sort (%d images pending)\n", userFlag, len(statsPending(stats)))
		return
	}
	fmt.Printf("User %s would be skipped: %s\n", userFlag, decision.Reason)
}

func runSort(cmd *cobra.Command, args []string) {
	logging.Init()
	ctx := context.Background()

	awsClients := lambdaboot.InitAWS()
	albumStore := lambdaboot.InitAlbumStore(awsClients.Config, "METADATA_TABLE_NAME", "STATS_TABLE_NAME")

	builder := &sorter.ListBuilder{
		Stats:  albumStore,
		Lister: &s3util.AlbumLister{Client: lambdaboot.InitS3(awsClients.Config), Bucket: bucketFlag},
	}
	ws, err := builder.Build(ctx, userFlag)
	if err != nil {
		log.Fatal().Err(err).Str("userId", userFlag).Msg("Failed to build work set (first-time sorts need --bucket)")
	}

	oracleClient, err := oracle.New(ctx, lambdaboot.LoadGeminiKey(awsClients.SSM))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create oracle client")
	}

	orch := &sorter.Orchestrator{Meta: albumStore, Oracle: oracleClient}
	result, err := orch.Run(ctx, ws)
	if err != nil {
		log.Fatal().Err(err).Str("userId", userFlag).Msg("Categorization pass failed")
	}

	if result.Sorted != nil {
		out, _ := json.MarshalIndent(result.Sorted, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Println("No image metadata resolved; nothing to categorize.")
	}

	if dryRunFlag {
		fmt.Println("Dry run: settle skipped.")
		return
	}
	if err := albumStore.SettleSort(ctx, userFlag, result.Sorted, result.ProcessedKeys, time.Now()); err != nil {
		log.Fatal().Err(err).Str("userId", userFlag).Msg("Failed to settle sort result")
	}
	fmt.Printf("Settled sort for %s (%d images processed)\n", userFlag, len(result.ProcessedKeys))
}

// statsPending returns the pending key set, tolerating a missing record.
func statsPending(stats *store.UserStats) []string {
	if stats == nil {
		return nil
	}
	return stats.PendingImageKeys
}
