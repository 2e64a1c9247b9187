// Package queue sends AI pre-screening jobs to SQS for the screener lambda.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the part of *sqs.Client the dispatcher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSDispatcher implements ports.ScreeningDispatcher using AWS SQS.
type SQSDispatcher struct {
	client   SQSAPI
	queueURL string
}

// NewSQSDispatcher creates a new SQSDispatcher.
func NewSQSDispatcher(client SQSAPI, queueURL string) *SQSDispatcher {
	return &SQSDispatcher{client: client, queueURL: queueURL}
}

var _ ports.ScreeningDispatcher = (*SQSDispatcher)(nil)

// Dispatch sends job as a JSON message body.
func (d *SQSDispatcher) Dispatch(ctx context.Context, job domain.ScreeningJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal screening job: %w", err)
	}

	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"project_id": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(job.ProjectID, 10)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send screening job for project %d: %w", job.ProjectID, err)
	}
	return nil
}

// DecodeJob parses a message body written by Dispatch.
func DecodeJob(body string) (domain.ScreeningJob, error) {
	var job domain.ScreeningJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return job, fmt.Errorf("decode screening job: %w", err)
	}
	if job.ProjectID <= 0 {
		return job, fmt.Errorf("decode screening job: missing project_id")
	}
	return job, nil
}
