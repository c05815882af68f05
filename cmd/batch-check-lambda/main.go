// Package main provides the Lambda that reconciles batch job outcomes with
// the queue messages that spawned them.
//
// The state machine's parallel map preserves order, so outcome i belongs to
// delete candidate i. Messages whose job succeeded are deleted from the
// queue; everything else is left for redelivery. When no queue URL is
// configured the Lambda only returns the delete list and a downstream state
// performs the deletion.
//
// Memory: 128 MB
// Timeout: 1 minute
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	"github.com/albumlab/album-organizer/internal/lambdaboot"
	"github.com/albumlab/album-organizer/internal/logging"
	"github.com/albumlab/album-organizer/internal/metrics"
	"github.com/albumlab/album-organizer/internal/queueutil"
	"github.com/albumlab/album-organizer/internal/reconcile"
)

// CheckEvent is the state machine task input: the parallel map's ordered
// outcome list plus the submit step's report.
type CheckEvent struct {
	MapResult    []reconcile.JobOutcome `json:"mapResult"`
	SubmitOutput SubmitOutput           `json:"submitOutput"`
}

// SubmitOutput is the slice of the submit report needed for reconciliation.
type SubmitOutput struct {
	DeleteCandidates []reconcile.DeleteEntry `json:"messagesToDelete"`
}

// Response reports the reconciliation outcome.
type Response struct {
	StatusCode int          `json:"statusCode"`
	Body       ResponseBody `json:"body"`
}

type ResponseBody struct {
	Deleted       int                     `json:"deleted"`
	DeleteEntries []reconcile.DeleteEntry `json:"deleteEntries"`
}

var (
	sqsClient *sqs.Client
	queueURL  string
)

func init() {
	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	sqsClient, queueURL = lambdaboot.InitSQS(awsClients.Config, "QUEUE_URL")

	lambdaboot.StartupLog("batch-check-lambda", initStart).
		Queue("transcode", queueURL).
		Log()
}

func handler(ctx context.Context, event CheckEvent) (Response, error) {
	entries := reconcile.Reconcile(event.SubmitOutput.DeleteCandidates, event.MapResult)

	deleted := 0
	if queueURL != "" && len(entries) > 0 {
		var err error
		deleted, err = queueutil.DeleteMessages(ctx, sqsClient, queueURL, entries)
		if err != nil {
			log.Error().Err(err).Msg("Queue deletion failed; messages will be redelivered")
			return Response{}, err
		}
	}

	metrics.New().
		Metric("JobsSucceeded", float64(len(entries)), metrics.UnitCount).
		Metric("MessagesDeleted", float64(deleted), metrics.UnitCount).
		Flush()

	return Response{
		StatusCode: 200,
		Body: ResponseBody{
			Deleted:       deleted,
			DeleteEntries: entries,
		},
	}, nil
}

func main() {
	lambda.Start(handler)
}
