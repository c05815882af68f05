// Package main provides the Lambda that shapes a batch of queue messages
// into transcoding job submissions.
//
// It validates every message body, reports malformed ones as permanently
// failed (redelivering them would never help), and returns the job list
// index-aligned with the delete-candidate list. The state machine fans the
// jobs out to the batch executor and later correlates results by position.
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
	"github.com/albumlab/album-organizer/internal/reconcile"
)

// SubmitEvent is the state machine task input: the raw ReceiveMessage batch.
type SubmitEvent struct {
	Messages []reconcile.QueueMessage `json:"Messages"`
}

func init() {
	initStart := time.Now()
	logging.Init()

	lambdaboot.StartupLog("batch-submit-lambda", initStart).Log()
}

func handler(ctx context.Context, event SubmitEvent) (reconcile.ParseReport, error) {
	if len(event.Messages) == 0 {
		log.Info().Msg("No messages in batch; nothing to submit")
		return reconcile.ParseReport{}, nil
	}

	report := reconcile.ParseMessages(event.Messages)

	metrics.New().
		Metric("JobsSubmitted", float64(len(report.Jobs)), metrics.UnitCount).
		Metric("MessagesRejected", float64(len(report.Failed)), metrics.UnitCount).
		Flush()

	return report, nil
}

func main() {
	lambda.Start(handler)
}
