// Package reconcile correlates the outcome of a parallel batch run back to
// the queue messages that spawned it, deciding which messages are safe to
// delete permanently. Correlation is positional: outcome i belongs to
// message i. Only messages whose job actually succeeded make the delete
// list; everything else stays in the queue for the platform's redelivery.
package reconcile

import (
	"github.com/rs/zerolog/log"
)

// StatusSucceeded is the batch executor's terminal success status.
const StatusSucceeded = "SUCCEEDED"

// QueueMessage is one received queue message. Field names follow the SQS
// ReceiveMessage output shape that the state machine passes through.
type QueueMessage struct {
	ID            string `json:"MessageId"`
	ReceiptHandle string `json:"ReceiptHandle"`
	Body          string `json:"Body"`
}

// JobOutcome is one entry of the batch executor's result list, same order
// as the submitted jobs.
type JobOutcome struct {
	JobID  string `json:"JobId"`
	Status string `json:"Status"`
}

// DeleteEntry identifies one message safe to remove from the queue. The
// field names match SQS DeleteMessageBatch entries.
type DeleteEntry struct {
	ID            string `json:"Id"`
	ReceiptHandle string `json:"ReceiptHandle"`
}

// Reconcile maps job outcomes back to their originating messages by
// position and returns the delete list. messages is the ordered delete-
// candidate list produced when the batch was submitted; outcomes is the
// batch executor's same-order result list.
//
// A missing outcome (outcome list shorter than the message list) is never
// guessed as success: the affected messages are skipped and the gap is
// logged, but reconciliation continues; redelivery will retry those
// messages, so a gap must not fail the whole batch.
func Reconcile(messages []DeleteEntry, outcomes []JobOutcome) []DeleteEntry {
	if len(outcomes) != len(messages) {
		log.Error().
			Int("messages", len(messages)).
			Int("outcomes", len(outcomes)).
			Msg("Correlation gap: outcome and message counts differ; unmatched messages treated as not succeeded")
	}

	n := len(messages)
	if len(outcomes) < n {
		n = len(outcomes)
	}

	deleteList := make([]DeleteEntry, 0, n)
	for i := 0; i < n; i++ {
		if outcomes[i].Status != StatusSucceeded {
			log.Debug().
				Str("jobId", outcomes[i].JobID).
				Str("status", outcomes[i].Status).
				Str("messageId", messages[i].ID).
				Msg("Job did not succeed; message stays in queue for retry")
			continue
		}

		deleteList = append(deleteList, messages[i])
		log.Info().
			Str("jobId", outcomes[i].JobID).
			Str("messageId", messages[i].ID).
			Msg("Job succeeded; message queued for deletion")
	}

	log.Info().
		Int("total", len(messages)).
		Int("deletable", len(deleteList)).
		Msg("Batch reconciliation complete")
	return deleteList
}
