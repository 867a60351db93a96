package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	awsclient "formflow/internal/common/aws"
	"formflow/internal/models"
)

const eventSubmissionCreated = "submission.created"

// SubmissionEvent is the SNS message body.
type SubmissionEvent struct {
	Event        string `json:"event"`
	SubmissionID string `json:"submissionId"`
	FormID       string `json:"formId"`
	CreatedAt    string `json:"createdAt"`
	FileCount    int    `json:"fileCount"`
}

// SNSPublisher publishes submission events to a topic. Field values are never included.
type SNSPublisher struct {
	client   awsclient.SNSAPI
	topicARN string
}

func NewSNSPublisher(client awsclient.SNSAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) SubmissionCreated(ctx context.Context, sub *models.Submission) error {
	body, err := json.Marshal(SubmissionEvent{
		Event:        eventSubmissionCreated,
		SubmissionID: sub.ID,
		FormID:       sub.FormID,
		CreatedAt:    sub.CreatedAt.UTC().Format(time.RFC3339),
		FileCount:    len(sub.Files),
	})
	if err != nil {
		return fmt.Errorf("encode submission event: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(eventSubmissionCreated)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish submission event: %w", err)
	}
	return nil
}
