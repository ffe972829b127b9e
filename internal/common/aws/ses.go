// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	apperrors "farm-copilot/internal/common/errors"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/common/metrics"
	"farm-copilot/internal/models"
)

// SESService is the subset of the SES client used for alert emails.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier emails urgent recommendations to a fixed list of recipients,
// typically the extension officers covering a district.
type SESNotifier struct {
	client     SESService
	from       string
	recipients []string
	logger     logger.Logger
}

func NewSESNotifier(ctx context.Context, region, from string, recipients []string, log logger.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESNotifierWithClient(ses.NewFromConfig(cfg), from, recipients, log), nil
}

func NewSESNotifierWithClient(client SESService, from string, recipients []string, log logger.Logger) *SESNotifier {
	return &SESNotifier{
		client:     client,
		from:       from,
		recipients: recipients,
		logger:     log.With(map[string]interface{}{"notifier": "ses"}),
	}
}

func (n *SESNotifier) NotifyUrgent(ctx context.Context, alert models.Alert) error {
	if len(n.recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("%s: %s", alertSubject, locationOrUnknown(alert.Location))
	out, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.from),
		Destination: &types.Destination{ToAddresses: n.recipients},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(alertText(alert)), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		metrics.AlertsPublished.WithLabelValues("error").Inc()
		return apperrors.NewNotificationSendFailedError("ses", err)
	}

	metrics.AlertsPublished.WithLabelValues("ok").Inc()
	n.logger.Info("urgent alert emailed", map[string]interface{}{
		"requestId":  alert.RequestID,
		"messageId":  aws.ToString(out.MessageId),
		"recipients": len(n.recipients),
	})
	return nil
}

func alertText(alert models.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Location: %s\n", locationOrUnknown(alert.Location))
	fmt.Fprintf(&b, "Question: %s\n", alert.Query)
	fmt.Fprintf(&b, "Raised at: %s\n\n", alert.RaisedAt.Format("2006-01-02 15:04 MST"))
	b.WriteString("Recommendations:\n")
	for _, rec := range alert.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	if len(alert.Insights) > 0 {
		b.WriteString("\nConditions:\n")
		for _, in := range alert.Insights {
			fmt.Fprintf(&b, "- %s: %s\n", in.Domain, in.Advice)
		}
	}
	fmt.Fprintf(&b, "\nReference: %s\n", alert.RequestID)
	return b.String()
}
