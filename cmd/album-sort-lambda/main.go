// Package main provides the Lambda that runs one album categorization pass.
//
// It consumes the image-list step's output, resolves stored metadata for the
// listed images, asks Gemini to group them into named categories (merging
// into the prior structure on incremental runs), validates the result, and
// settles the outcome in the stats record. Orchestration errors propagate to
// the state machine so its retry policy re-runs the pass; the pending set is
// only consumed by a successful settle.
//
// Memory: 256 MB
// Timeout: 10 minutes (rate-limit retries can wait out long throttles)
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/albumlab/album-organizer/internal/lambdaboot"
	"github.com/albumlab/album-organizer/internal/logging"
	"github.com/albumlab/album-organizer/internal/metrics"
	"github.com/albumlab/album-organizer/internal/oracle"
	"github.com/albumlab/album-organizer/internal/sorter"
	"github.com/albumlab/album-organizer/internal/store"
)

// SortEvent is the image-list step's output, passed through by the state
// machine.
type SortEvent struct {
	UserID           string            `json:"userID"`
	IsInitialSort    bool              `json:"isInitialSort"`
	ImageList        []string          `json:"imageList"`
	NewImageList     []string          `json:"newImageList"`
	ExistingSortData *store.SortedData `json:"existingSortData"`
}

// Response reports the settled pass back to the state machine.
type Response struct {
	StatusCode int          `json:"statusCode"`
	Body       ResponseBody `json:"body"`
}

type ResponseBody struct {
	Status          string `json:"status"`
	Message         string `json:"message,omitempty"`
	UserID          string `json:"userID"`
	Categories      int    `json:"categoriesCount"`
	ImagesProcessed int    `json:"imagesProcessed"`
}

var (
	albumStore   *store.DynamoStore
	oracleClient *oracle.Client
)

func init() {
	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	albumStore = lambdaboot.InitAlbumStore(awsClients.Config, "METADATA_TABLE_NAME", "STATS_TABLE_NAME")
	apiKey := lambdaboot.LoadGeminiKey(awsClients.SSM)

	var err error
	oracleClient, err = oracle.New(context.Background(), apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create oracle client")
	}

	lambdaboot.StartupLog("album-sort-lambda", initStart).
		DynamoTable("metadata", logging.EnvOrDefault("METADATA_TABLE_NAME", "")).
		DynamoTable("stats", logging.EnvOrDefault("STATS_TABLE_NAME", "")).
		Config("model", oracle.GetModelName()).
		Log()
}

func handler(ctx context.Context, event SortEvent) (Response, error) {
	if event.UserID == "" {
		return Response{}, fmt.Errorf("userID is required")
	}

	ws := &sorter.WorkSet{
		UserID:  event.UserID,
		Initial: event.IsInitialSort,
	}
	if event.IsInitialSort {
		ws.Keys = event.ImageList
	} else {
		ws.Keys = event.NewImageList
		ws.Prior = event.ExistingSortData
	}

	log.Info().
		Str("userId", ws.UserID).
		Bool("initial", ws.Initial).
		Int("images", len(ws.Keys)).
		Msg("Starting categorization pass")

	passStart := time.Now()
	orch := &sorter.Orchestrator{Meta: albumStore, Oracle: oracleClient}
	result, err := orch.Run(ctx, ws)
	if err != nil {
		log.Error().Err(err).Str("userId", ws.UserID).Msg("Categorization pass failed; pending set untouched")
		return Response{}, err
	}

	if err := albumStore.SettleSort(ctx, ws.UserID, result.Sorted, result.ProcessedKeys, time.Now()); err != nil {
		log.Error().Err(err).Str("userId", ws.UserID).Msg("Failed to settle sort result")
		return Response{}, err
	}

	categories := 0
	if result.Sorted != nil {
		categories = len(result.Sorted.Categories)
	}

	metrics.New().
		Metric("PassDuration", float64(time.Since(passStart).Milliseconds()), metrics.UnitMilliseconds).
		Metric("ImagesProcessed", float64(len(result.ProcessedKeys)), metrics.UnitCount).
		Metric("Categories", float64(categories), metrics.UnitCount).
		Property("userId", ws.UserID).
		Property("initial", ws.Initial).
		Flush()

	if result.Sorted == nil {
		log.Info().Str("userId", ws.UserID).Msg("Pass settled without a result; no image metadata resolved")
		return Response{
			StatusCode: 200,
			Body: ResponseBody{
				Status:  "COMPLETED",
				Message: "No new images to process",
				UserID:  ws.UserID,
			},
		}, nil
	}

	log.Info().
		Str("userId", ws.UserID).
		Int("categories", categories).
		Int("images", len(result.ProcessedKeys)).
		Dur("duration", time.Since(passStart)).
		Msg("Categorization pass settled")
	return Response{
		StatusCode: 200,
		Body: ResponseBody{
			Status:          "COMPLETED",
			Message:         "Album sorted successfully",
			UserID:          ws.UserID,
			Categories:      categories,
			ImagesProcessed: len(result.ProcessedKeys),
		},
	}, nil
}

func main() {
	lambda.Start(handler)
}
