package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"wildlife-governance/internal/core/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSDispatcher_RoundTrip(t *testing.T) {
	client := &fakeSQS{}
	d := NewSQSDispatcher(client, "https://sqs.us-east-1.amazonaws.com/123/screening")
	job := domain.ScreeningJob{ProjectID: 7, ExternalID: "RHINO-001", Text: "Project Title: Rhino", RequestedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	require.NoError(t, d.Dispatch(context.Background(), job))
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/screening", aws.ToString(in.QueueUrl))
	assert.Equal(t, "7", aws.ToString(in.MessageAttributes["project_id"].StringValue))

	decoded, err := DecodeJob(aws.ToString(in.MessageBody))
	require.NoError(t, err)
	assert.Equal(t, job, decoded)
}

func TestSQSDispatcher_SendError(t *testing.T) {
	d := NewSQSDispatcher(&fakeSQS{err: errors.New("throttled")}, "q")

	err := d.Dispatch(context.Background(), domain.ScreeningJob{ProjectID: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project 3")
}

func TestDecodeJob_Invalid(t *testing.T) {
	_, err := DecodeJob("not json")
	assert.Error(t, err)

	_, err = DecodeJob(`{"text":"no id"}`)
	assert.Error(t, err)
}
