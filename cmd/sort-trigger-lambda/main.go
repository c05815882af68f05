// Package main provides the Lambda that decides whether a user's album is
// due for a categorization pass.
//
// It reads the user's stats record and applies the trigger rules: enough
// images accumulated, sorting actually requested, and the last completed
// pass not too recent. When a state machine ARN is configured, a positive
// decision also starts the sorting workflow; otherwise the decision is only
// returned to the caller (the state machine's own Choice state, in the
// inline deployment).
//
// Memory: 128 MB
// Timeout: 30 seconds
package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/albumlab/album-organizer/internal/lambdaboot"
	"github.com/albumlab/album-organizer/internal/logging"
	"github.com/albumlab/album-organizer/internal/metrics"
	"github.com/albumlab/album-organizer/internal/sorter"
	"github.com/albumlab/album-organizer/internal/store"
	"github.com/albumlab/album-organizer/internal/taskevent"
)

// TriggerEvent is the state machine task input.
type TriggerEvent struct {
	Body json.RawMessage `json:"body"`
}

type triggerBody struct {
	UserID string `json:"userID"`
}

// Response is the task output consumed by the state machine's Choice state.
type Response struct {
	StatusCode int          `json:"statusCode"`
	Body       ResponseBody `json:"body"`
}

// ResponseBody carries the trigger decision.
type ResponseBody struct {
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`
	UserID     string `json:"userID,omitempty"`
	ImageCount int    `json:"imageCount,omitempty"`
}

// Decision statuses returned to the state machine.
const (
	StatusTriggered = "TRIGGERED"
	StatusSkipped   = "SKIPPED"
	StatusError     = "ERROR"
)

var (
	statsStore      *store.DynamoStore
	sfnClient       *sfn.Client
	stateMachineArn string
	albumBucket     string
)

func init() {
	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	statsStore = lambdaboot.InitStatsStore(awsClients.Config, "STATS_TABLE_NAME")
	sfnClient, stateMachineArn = lambdaboot.InitSFN(awsClients.Config, "STATE_MACHINE_ARN")
	albumBucket = os.Getenv("ALBUM_BUCKET_NAME")

	lambdaboot.StartupLog("sort-trigger-lambda", initStart).
		DynamoTable("stats", logging.EnvOrDefault("STATS_TABLE_NAME", "")).
		S3Bucket("album", albumBucket).
		Config("stateMachineArn", stateMachineArn).
		Config("sortThreshold", strconv.Itoa(sorter.SortThreshold)).
		Config("debounceWindow", sorter.DebounceWindow.String()).
		Log()
}

// startWorkflow launches one sorting execution for the user. The execution
// input mirrors the envelope the image-list step expects.
func startWorkflow(ctx context.Context, userID string) error {
	input, err := json.Marshal(map[string]any{
		"s3Bucket": albumBucket,
		"body":     map[string]string{"userID": userID},
	})
	if err != nil {
		return err
	}

	out, err := sfnClient.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(stateMachineArn),
		Name:            aws.String("sort-" + uuid.NewString()),
		Input:           aws.String(string(input)),
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("userId", userID).
		Str("executionArn", aws.ToString(out.ExecutionArn)).
		Msg("Sorting workflow started")
	return nil
}

func handler(ctx context.Context, event TriggerEvent) (Response, error) {
	var body triggerBody
	if err := taskevent.DecodeBody(event.Body, &body); err != nil {
		log.Error().Err(err).Msg("Invalid trigger event")
		return Response{
			StatusCode: 400,
			Body:       ResponseBody{Status: StatusError, Message: "Invalid request body"},
		}, nil
	}
	if body.UserID == "" {
		return Response{
			StatusCode: 400,
			Body:       ResponseBody{Status: StatusError, Message: "userID is required"},
		}, nil
	}

	log.Info().Str("userId", body.UserID).Msg("Evaluating sort trigger")

	stats, err := statsStore.GetStats(ctx, body.UserID)
	if err != nil {
		log.Error().Err(err).Str("userId", body.UserID).Msg("Failed to read user stats")
		return Response{}, err
	}
	if stats == nil {
		// A user with no stats record has never uploaded anything.
		return Response{
			StatusCode: 404,
			Body:       ResponseBody{Status: StatusError, Message: "User stats not found"},
		}, nil
	}

	decision := sorter.EvaluateTrigger(stats, time.Now())

	rec := metrics.New().
		Dimension("Decision", decisionLabel(decision)).
		Count("TriggerEvaluated").
		Property("userId", body.UserID)
	defer rec.Flush()

	if !decision.Run {
		log.Info().
			Str("userId", body.UserID).
			Str("reason", decision.Reason).
			Msg("Sort skipped")
		return Response{
			StatusCode: 200,
			Body: ResponseBody{
				Status: StatusSkipped,
				Reason: decision.Reason,
				UserID: body.UserID,
			},
		}, nil
	}

	if stateMachineArn != "" {
		if err := startWorkflow(ctx, body.UserID); err != nil {
			log.Error().Err(err).Str("userId", body.UserID).Msg("Failed to start sorting workflow")
			return Response{}, err
		}
	}

	log.Info().
		Str("userId", body.UserID).
		Int("imageCount", stats.ImageCount).
		Msg("Sort triggered")
	return Response{
		StatusCode: 200,
		Body: ResponseBody{
			Status:     StatusTriggered,
			Message:    "Sorting workflow started",
			UserID:     body.UserID,
			ImageCount: stats.ImageCount,
		},
	}, nil
}

func decisionLabel(d sorter.Decision) string {
	if d.Run {
		return "triggered"
	}
	return "skipped"
}

func main() {
	lambda.Start(handler)
}
