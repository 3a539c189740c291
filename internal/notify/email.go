package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"seaop/internal/config"
)

// SESService is the subset of the SES client the forwarder uses, split out
// so tests can substitute a mock.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailForwarder sends a copy of a persisted notification by mail.
type EmailForwarder struct {
	client SESService
	from   string
}

func NewEmailForwarder(ctx context.Context, cfg config.EmailConfig) (*EmailForwarder, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	return &EmailForwarder{client: ses.NewFromConfig(awsCfg), from: cfg.FromEmail}, nil
}

// NewEmailForwarderWithClient wires an existing SES client (used in tests).
func NewEmailForwarderWithClient(client SESService, from string) *EmailForwarder {
	return &EmailForwarder{client: client, from: from}
}

func (f *EmailForwarder) Forward(ctx context.Context, to, subject, body string) error {
	_, err := f.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(f.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	return err
}
