package push

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"rehearsalplanner/internal/domain"
)

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	InsecureSkipVerify bool
}

// Config holds configuration for creating a push sender.
type Config struct {
	Provider    string
	FromAddress string
	FromName    string
	SES         SESConfig
}

// NewSender creates a PushSender from config. Provider "ses" delivers pushes
// as SES emails resolved through the member roster; "noop" or unknown logs
// and drops them. Dispatch is best-effort either way; failures are the
// caller's to log, never to retry.
func NewSender(config Config, members domain.MemberRepository, logger *slog.Logger) (domain.PushSender, error) {
	switch config.Provider {
	case "ses":
		if config.SES.InsecureSkipVerify {
			logger.Warn("TLS certificate verification is disabled for SES, use only in development")
		}
		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: config.SES.InsecureSkipVerify,
					MinVersion:         tls.VersionTLS12,
				},
			},
		}
		awsCfg := aws.Config{
			Region: config.SES.Region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(
					config.SES.AccessKeyID,
					config.SES.SecretAccessKey,
					"",
				),
			),
			HTTPClient: httpClient,
		}
		return &sesSender{
			client:      ses.NewFromConfig(awsCfg),
			members:     members,
			fromAddress: config.FromAddress,
			fromName:    config.FromName,
		}, nil
	case "noop":
		return &noopSender{logger: logger}, nil
	default:
		logger.Warn("unknown push provider, using noop", "provider", config.Provider)
		return &noopSender{logger: logger}, nil
	}
}

type sesSender struct {
	client      *ses.Client
	members     domain.MemberRepository
	fromAddress string
	fromName    string
}

func (s *sesSender) Send(ctx context.Context, memberID, title, body string) error {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return fmt.Errorf("resolve member %s: %w", memberID, err)
	}
	source := s.fromAddress
	if s.fromName != "" {
		source = fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	}
	input := &ses.SendEmailInput{
		Source: aws.String(source),
		Destination: &types.Destination{
			ToAddresses: []string{member.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(title),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("send push via SES: %w", err)
	}
	return nil
}

type noopSender struct {
	logger *slog.Logger
}

func (n *noopSender) Send(_ context.Context, memberID, title, _ string) error {
	n.logger.Debug("push would be sent (noop)", "member_id", memberID, "title", title)
	return nil
}
