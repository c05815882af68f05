// Package main provides the Lambda that builds the image list for one
// categorization pass.
//
// For a first-time sort it lists the user's full album prefix from S3; for
// an incremental sort it returns the pending image keys accumulated in the
// stats record along with the prior sort result, so the next step can merge
// instead of resorting everything.
//
// Memory: 128 MB
// Timeout: 1 minute
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/albumlab/album-organizer/internal/lambdaboot"
	"github.com/albumlab/album-organizer/internal/logging"
	"github.com/albumlab/album-organizer/internal/s3util"
	"github.com/albumlab/album-organizer/internal/sorter"
	"github.com/albumlab/album-organizer/internal/store"
	"github.com/albumlab/album-organizer/internal/taskevent"
)

// ListEvent is the state machine task input. The bucket travels in the
// event rather than the environment so one deployment can serve multiple
// album buckets.
type ListEvent struct {
	S3Bucket string          `json:"s3Bucket"`
	Body     json.RawMessage `json:"body"`
}

type listBody struct {
	UserID string `json:"userID"`
}

// ListOutput is the task output consumed by the album-sort step. Exactly one
// of ImageList (initial sort) or NewImageList (incremental sort) is set.
type ListOutput struct {
	UserID           string            `json:"userID"`
	IsInitialSort    bool              `json:"isInitialSort"`
	ImageList        []string          `json:"imageList,omitempty"`
	NewImageList     []string          `json:"newImageList,omitempty"`
	ExistingSortData *store.SortedData `json:"existingSortData,omitempty"`
}

var (
	statsStore *store.DynamoStore
	s3Client   *s3.Client
)

func init() {
	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	statsStore = lambdaboot.InitStatsStore(awsClients.Config, "STATS_TABLE_NAME")
	s3Client = lambdaboot.InitS3(awsClients.Config)

	lambdaboot.StartupLog("image-list-lambda", initStart).
		DynamoTable("stats", logging.EnvOrDefault("STATS_TABLE_NAME", "")).
		Log()
}

func handler(ctx context.Context, event ListEvent) (ListOutput, error) {
	var body listBody
	if err := taskevent.DecodeBody(event.Body, &body); err != nil {
		log.Error().Err(err).Msg("Invalid list event")
		return ListOutput{}, err
	}
	if body.UserID == "" {
		log.Error().Msg("userID missing from list event")
		return ListOutput{}, fmt.Errorf("userID is required")
	}
	if event.S3Bucket == "" {
		log.Error().Str("userId", body.UserID).Msg("s3Bucket missing from list event")
		return ListOutput{}, fmt.Errorf("s3Bucket is required")
	}

	builder := &sorter.ListBuilder{
		Stats:  statsStore,
		Lister: &s3util.AlbumLister{Client: s3Client, Bucket: event.S3Bucket},
	}
	ws, err := builder.Build(ctx, body.UserID)
	if err != nil {
		log.Error().Err(err).Str("userId", body.UserID).Msg("Failed to build image list")
		return ListOutput{}, err
	}

	out := ListOutput{UserID: ws.UserID, IsInitialSort: ws.Initial}
	if ws.Initial {
		out.ImageList = ws.Keys
	} else {
		out.NewImageList = ws.Keys
		out.ExistingSortData = ws.Prior
	}
	return out, nil
}

func main() {
	lambda.Start(handler)
}
