package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// JobSpec is one validated transcoding job extracted from a queue message
// body. JobID is generated at parse time and used as the batch job name so
// the executor's results can name the job they belong to. Encoding values
// are normalized to strings regardless of the JSON type the producer used.
type JobSpec struct {
	JobID     string            `json:"jobId"`
	SourceKey string            `json:"sourceKey"`
	Encoding  map[string]string `json:"avifEncoding"`
}

// FailedMessage reports a message that can never produce a job. Malformed
// bodies are excluded from submission entirely: redelivering a message that
// does not parse will never parse, so these are reported instead of retried.
type FailedMessage struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
	Body      string `json:"originalMessageBody,omitempty"`
}

// ParseReport is the outcome of shaping a message batch into job specs.
// Jobs[i] was extracted from the message behind DeleteCandidates[i]; the
// two lists stay index-aligned because positional correlation downstream
// depends on it.
type ParseReport struct {
	Jobs             []JobSpec       `json:"successfulJobs"`
	DeleteCandidates []DeleteEntry   `json:"messagesToDelete"`
	Failed           []FailedMessage `json:"failedMessages"`
}

// ParseMessages validates each message body and splits the batch into
// submittable jobs and permanently failed messages.
func ParseMessages(messages []QueueMessage) ParseReport {
	var report ParseReport

	for _, msg := range messages {
		spec, err := parseBody(msg.Body)
		if err != nil {
			log.Error().Err(err).Str("messageId", msg.ID).Msg("Message body rejected; reporting as permanently failed")
			report.Failed = append(report.Failed, FailedMessage{
				MessageID: msg.ID,
				Error:     err.Error(),
				Body:      msg.Body,
			})
			continue
		}

		spec.JobID = uuid.NewString()
		report.Jobs = append(report.Jobs, *spec)
		report.DeleteCandidates = append(report.DeleteCandidates, DeleteEntry{
			ID:            msg.ID,
			ReceiptHandle: msg.ReceiptHandle,
		})
	}

	log.Info().
		Int("total", len(messages)).
		Int("jobs", len(report.Jobs)).
		Int("failed", len(report.Failed)).
		Msg("Queue messages parsed")
	return report
}

// parseBody extracts a JobSpec from one message body. Bodies may carry the
// payload directly or nested under a MessageBody envelope. sourceKey and
// avifEncoding are required; their absence is a validation error, never
// silently defaulted.
func parseBody(body string) (*JobSpec, error) {
	if body == "" {
		return nil, fmt.Errorf("message body is empty")
	}

	payload, err := decodeObject([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("message body is not valid JSON: %w", err)
	}

	if inner, ok := payload["MessageBody"]; ok {
		if nested, err := decodeObject(inner); err == nil {
			payload = nested
		}
	}

	var sourceKey string
	if err := json.Unmarshal(payload["sourceKey"], &sourceKey); err != nil || sourceKey == "" {
		return nil, fmt.Errorf("missing or invalid 'sourceKey' field")
	}

	rawEncoding, ok := payload["avifEncoding"]
	if !ok {
		return nil, fmt.Errorf("missing 'avifEncoding' field")
	}
	encoding, err := stringifyEncoding(rawEncoding)
	if err != nil {
		return nil, fmt.Errorf("invalid 'avifEncoding' field: %w", err)
	}

	return &JobSpec{SourceKey: sourceKey, Encoding: encoding}, nil
}

// decodeObject unmarshals a JSON object into its raw members.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// stringifyEncoding converts every encoding parameter to its string form.
// The batch job definition takes parameters as strings, while producers
// emit numbers and booleans; json.Number keeps "30" from becoming "30.0"
// on the way through.
func stringifyEncoding(raw json.RawMessage) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}

	encoding := make(map[string]string, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			encoding[k] = val
		case json.Number:
			encoding[k] = val.String()
		case bool:
			encoding[k] = strconv.FormatBool(val)
		default:
			data, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", k, err)
			}
			encoding[k] = string(data)
		}
	}
	return encoding, nil
}
