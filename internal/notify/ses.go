package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	awsclient "formflow/internal/common/aws"
	"formflow/internal/models"
)

// SESMailer e-mails a fixed operator address when a submission arrives.
type SESMailer struct {
	client awsclient.SESAPI
	from   string
	to     string
}

func NewSESMailer(client awsclient.SESAPI, from, to string) *SESMailer {
	return &SESMailer{client: client, from: from, to: to}
}

func (m *SESMailer) SubmissionCreated(ctx context.Context, sub *models.Submission) error {
	subject := fmt.Sprintf("New submission for form %s", sub.FormID)

	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{m.to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(summary(sub))},
			},
		},
		Source: aws.String(m.from),
	})
	if err != nil {
		return fmt.Errorf("send submission email: %w", err)
	}
	return nil
}

func summary(sub *models.Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Submission: %s\n", sub.ID)
	fmt.Fprintf(&b, "Form: %s\n", sub.FormID)
	fmt.Fprintf(&b, "Received: %s\n", sub.CreatedAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Fields answered: %d\n", len(sub.Data))
	fmt.Fprintf(&b, "Files: %d\n", len(sub.Files))
	return b.String()
}
