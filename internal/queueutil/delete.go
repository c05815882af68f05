// Package queueutil provides SQS helpers for the batch pipeline.
package queueutil

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"

	"github.com/albumlab/album-organizer/internal/reconcile"
)

// maxDeleteBatch is the SQS DeleteMessageBatch limit per call.
const maxDeleteBatch = 10

// DeleteMessages removes the given entries from the queue, chunked to the
// SQS batch limit. Deletion is idempotent on the SQS side: deleting an
// already-deleted message succeeds, so retries of the whole call are safe.
// Per-entry failures are logged and counted, not fatal; an undeleted
// message reappears after its visibility timeout and is reconciled again.
func DeleteMessages(ctx context.Context, client *sqs.Client, queueURL string, entries []reconcile.DeleteEntry) (deleted int, err error) {
	for i := 0; i < len(entries); i += maxDeleteBatch {
		end := i + maxDeleteBatch
		if end > len(entries) {
			end = len(entries)
		}

		batch := make([]sqstypes.DeleteMessageBatchRequestEntry, 0, end-i)
		for _, e := range entries[i:end] {
			batch = append(batch, sqstypes.DeleteMessageBatchRequestEntry{
				Id:            aws.String(e.ID),
				ReceiptHandle: aws.String(e.ReceiptHandle),
			})
		}

		out, err := client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(queueURL),
			Entries:  batch,
		})
		if err != nil {
			return deleted, fmt.Errorf("DeleteMessageBatch (%d entries): %w", len(batch), err)
		}

		deleted += len(out.Successful)
		for _, f := range out.Failed {
			log.Warn().
				Str("id", aws.ToString(f.Id)).
				Str("code", aws.ToString(f.Code)).
				Str("message", aws.ToString(f.Message)).
				Msg("Failed to delete message; will reappear after visibility timeout")
		}
	}

	log.Info().Int("deleted", deleted).Int("requested", len(entries)).Msg("Queue messages deleted")
	return deleted, nil
}
