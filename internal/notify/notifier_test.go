// internal/notify/notifier_test.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/models"
)

type fakePublisher struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, input)
	return &sns.PublishOutput{}, f.err
}

type fakeEmailer struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeEmailer) SendEmail(_ context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, input)
	return &ses.SendEmailOutput{}, f.err
}

func testJob() *models.ExtractionJob {
	return &models.ExtractionJob{ResumeID: "res-1", UserID: "user-1"}
}

func TestJobFinished_PublishesOutcome(t *testing.T) {
	publisher := &fakePublisher{}
	n := NewNotifier(publisher, nil, Config{TopicARN: "arn:aws:sns:eu-west-1:1:resume-outcomes"}, logger.NewNoOpLogger())

	n.JobFinished(context.Background(), testJob(), models.StatusFailed, models.FailureCoverage)

	require.Len(t, publisher.inputs, 1)
	var event outcomeEvent
	require.NoError(t, json.Unmarshal([]byte(*publisher.inputs[0].Message), &event))
	assert.Equal(t, "res-1", event.ResumeID)
	assert.Equal(t, models.StatusFailed, event.Status)
	assert.Equal(t, models.FailureCoverage, event.Reason)
	assert.NotEmpty(t, event.EventID)
}

func TestJobFinished_NoTopicConfigured(t *testing.T) {
	publisher := &fakePublisher{}
	n := NewNotifier(publisher, nil, Config{}, logger.NewNoOpLogger())

	n.JobFinished(context.Background(), testJob(), models.StatusCompleted, "")

	assert.Empty(t, publisher.inputs)
}

func TestJobFinished_PublishErrorSwallowed(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("throttled")}
	n := NewNotifier(publisher, nil, Config{TopicARN: "arn:topic"}, logger.NewNoOpLogger())

	// Must not panic or surface the error.
	n.JobFinished(context.Background(), testJob(), models.StatusCompleted, "")

	assert.Len(t, publisher.inputs, 1)
}

func TestEmailCompletion_SendsWhenConfigured(t *testing.T) {
	emailer := &fakeEmailer{}
	n := NewNotifier(nil, emailer, Config{FromAddress: "noreply@example.com"}, logger.NewNoOpLogger())

	n.EmailCompletion(context.Background(), "dana@example.com", testJob())

	require.Len(t, emailer.inputs, 1)
	assert.Equal(t, "noreply@example.com", *emailer.inputs[0].Source)
	assert.Equal(t, []string{"dana@example.com"}, emailer.inputs[0].Destination.ToAddresses)
}

func TestEmailCompletion_SkippedWithoutRecipient(t *testing.T) {
	emailer := &fakeEmailer{}
	n := NewNotifier(nil, emailer, Config{FromAddress: "noreply@example.com"}, logger.NewNoOpLogger())

	n.EmailCompletion(context.Background(), "", testJob())

	assert.Empty(t, emailer.inputs)
}
