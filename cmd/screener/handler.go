package main

import (
	"context"

	"wildlife-governance/internal/adapter/queue"
	"wildlife-governance/internal/core/domain"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// jobProcessor is the part of service.ScreeningWorker the handler drives.
type jobProcessor interface {
	Process(ctx context.Context, job domain.ScreeningJob) error
}

// Handler screens every project in an SQS batch.
type Handler struct {
	worker jobProcessor
	log    zerolog.Logger
}

// HandleRequest reports only the failed messages back to SQS so the rest of
// the batch is not redelivered. Undecodable bodies are dropped: a retry
// cannot fix them.
func (h *Handler) HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, message := range sqsEvent.Records {
		job, err := queue.DecodeJob(message.Body)
		if err != nil {
			h.log.Error().Err(err).Str("message_id", message.MessageId).Msg("dropping malformed screening message")
			continue
		}

		if err := h.worker.Process(ctx, job); err != nil {
			h.log.Error().Err(err).
				Str("message_id", message.MessageId).
				Int64("project_id", job.ProjectID).
				Msg("screening failed, returning message to queue")
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: message.MessageId,
			})
		}
	}
	return resp, nil
}
