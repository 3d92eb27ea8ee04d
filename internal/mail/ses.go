package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// DefaultRegion is used when neither the flag nor the AWS config sets one.
const DefaultRegion = "eu-central-1"

// sender is the subset of the SESv2 client used here.
type sender interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES sends mail through Amazon SES.
type SES struct {
	client sender
	from   string
}

// NewSES loads the default AWS configuration (environment, shared config or
// instance role) and returns a mailer sending from the given address.
func NewSES(ctx context.Context, region, from string) (*SES, error) {
	if from == "" {
		return nil, fmt.Errorf("SES sender address is not set")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	if region != "" {
		cfg.Region = region
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	return &SES{client: sesv2.NewFromConfig(cfg), from: from}, nil
}

func (s *SES) Send(ctx context.Context, msg Message) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{msg.To}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(msg.Subject)},
				Body:    &sestypes.Body{Html: &sestypes.Content{Data: aws.String(msg.HTML)}},
			},
		},
	}
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}
