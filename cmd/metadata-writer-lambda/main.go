// Package main provides the Lambda that persists per-image analysis results
// into the metadata table.
//
// Invoked once per processed image with the upstream pipeline's analysis
// payload, it upserts the image record and, for first-time images, bumps the
// user's image count and pending set in the same transaction so the counter
// can never drift from the records it counts.
//
// Memory: 128 MB
// Timeout: 30 seconds
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/albumlab/album-organizer/internal/lambdaboot"
	"github.com/albumlab/album-organizer/internal/logging"
	"github.com/albumlab/album-organizer/internal/metrics"
	"github.com/albumlab/album-organizer/internal/store"
)

// IngestEvent is the analysis payload for one image.
type IngestEvent struct {
	OriginalKey string         `json:"originalKey"`
	SourceInfo  SourceInfo     `json:"sourceInfo"`
	Analysis    store.Analysis `json:"analysis"`
}

// SourceInfo locates the processed object this analysis belongs to.
type SourceInfo struct {
	SourceBucket string `json:"sourceBucket"`
	ProcessedKey string `json:"processedKey"`
}

// Response reports the persisted write.
type Response struct {
	StatusCode int          `json:"statusCode"`
	Body       ResponseBody `json:"body"`
}

type ResponseBody struct {
	Message   string `json:"message"`
	Operation string `json:"operation"`
	UserID    string `json:"userID"`
	AlbumID   string `json:"albumId"`
	Timestamp string `json:"timestamp"`
}

var albumStore *store.DynamoStore

func init() {
	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	albumStore = lambdaboot.InitAlbumStore(awsClients.Config, "METADATA_TABLE_NAME", "STATS_TABLE_NAME")

	lambdaboot.StartupLog("metadata-writer-lambda", initStart).
		DynamoTable("metadata", logging.EnvOrDefault("METADATA_TABLE_NAME", "")).
		DynamoTable("stats", logging.EnvOrDefault("STATS_TABLE_NAME", "")).
		Log()
}

func handler(ctx context.Context, event IngestEvent) (Response, error) {
	log.Info().Str("originalKey", event.OriginalKey).Msg("Ingesting image analysis")

	existing, err := albumStore.GetImageByOriginalKey(ctx, event.OriginalKey)
	if err != nil {
		log.Error().Err(err).Str("originalKey", event.OriginalKey).Msg("Index lookup failed")
		return Response{}, err
	}

	now := time.Now()
	rec, isUpdate, err := store.PlanImageWrite(existing, store.IngestInput{
		OriginalKey:  event.OriginalKey,
		SourceBucket: event.SourceInfo.SourceBucket,
		ProcessedKey: event.SourceInfo.ProcessedKey,
		Analysis:     event.Analysis,
	}, now)
	if err != nil {
		log.Error().Err(err).Str("originalKey", event.OriginalKey).Msg("Rejected analysis payload")
		return Response{}, err
	}

	operation := "create"
	if isUpdate {
		operation = "update"
		err = albumStore.UpdateImage(ctx, rec)
	} else {
		err = albumStore.CreateImage(ctx, rec)
	}
	if err != nil {
		log.Error().Err(err).
			Str("originalKey", event.OriginalKey).
			Str("operation", operation).
			Msg("Failed to persist image record")
		return Response{}, err
	}

	metrics.New().
		Dimension("Operation", operation).
		Count("ImageIngested").
		Property("albumId", rec.AlbumID).
		Flush()

	log.Info().
		Str("userId", rec.UserID).
		Str("albumId", rec.AlbumID).
		Str("operation", operation).
		Msg("Image metadata persisted")
	return Response{
		StatusCode: 200,
		Body: ResponseBody{
			Message:   "Image metadata saved",
			Operation: operation,
			UserID:    rec.UserID,
			AlbumID:   rec.AlbumID,
			Timestamp: store.Timestamp(now),
		},
	}, nil
}

func main() {
	lambda.Start(handler)
}
