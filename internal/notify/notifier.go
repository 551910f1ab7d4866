// internal/notify/notifier.go

// Package notify publishes job outcomes over SNS and optionally emails
// the user on completion. Everything here is best-effort.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Emailer interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type Config struct {
	TopicARN    string
	FromAddress string
}

type Notifier struct {
	sns    Publisher
	ses    Emailer
	cfg    Config
	logger logger.Logger
}

func NewNotifier(publisher Publisher, emailer Emailer, cfg Config, log logger.Logger) *Notifier {
	return &Notifier{sns: publisher, ses: emailer, cfg: cfg, logger: log}
}

// outcomeEvent carries a unique eventId so downstream consumers can
// deduplicate redelivered notifications.
type outcomeEvent struct {
	EventID    string `json:"eventId"`
	ResumeID   string `json:"resumeId"`
	UserID     string `json:"userId"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	FinishedAt int64  `json:"finishedAt"`
}

// JobFinished publishes the terminal outcome. Errors are logged and
// swallowed; a missed notification never changes the job's status.
func (n *Notifier) JobFinished(ctx context.Context, job *models.ExtractionJob, status, reason string) {
	if n.sns == nil || n.cfg.TopicARN == "" {
		return
	}

	payload, err := json.Marshal(outcomeEvent{
		EventID:    uuid.NewString(),
		ResumeID:   job.ResumeID,
		UserID:     job.UserID,
		Status:     status,
		Reason:     reason,
		FinishedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		n.logger.Warn("encode outcome event failed", map[string]interface{}{"error": err.Error()})
		return
	}

	_, err = n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.cfg.TopicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"status": {DataType: aws.String("String"), StringValue: aws.String(status)},
		},
	})
	if err != nil {
		n.logger.Warn("outcome publish failed", map[string]interface{}{
			"resumeId": job.ResumeID,
			"error":    err.Error(),
		})
	}
}

// EmailCompletion sends a completion email when a from-address and
// recipient are configured.
func (n *Notifier) EmailCompletion(ctx context.Context, recipient string, job *models.ExtractionJob) {
	if n.ses == nil || n.cfg.FromAddress == "" || recipient == "" {
		return
	}

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.cfg.FromAddress),
		Destination: &sestypes.Destination{
			ToAddresses: []string{recipient},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String("Your resume is ready")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{
					Data: aws.String("We finished processing your resume. You can now review the extracted details."),
				},
			},
		},
	})
	if err != nil {
		n.logger.Warn("completion email failed", map[string]interface{}{
			"resumeId": job.ResumeID,
			"error":    err.Error(),
		})
	}
}
