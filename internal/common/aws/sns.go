// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	apperrors "farm-copilot/internal/common/errors"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/common/metrics"
	"farm-copilot/internal/models"
)

const alertSubject = "Urgent farm advisory"

// SNSService is the subset of the SNS client used for alerts.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes urgent recommendations to an SNS topic.
type SNSNotifier struct {
	client   SNSService
	topicARN string
	logger   logger.Logger
}

func NewSNSNotifier(ctx context.Context, region, topicARN string, log logger.Logger) (*SNSNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSNSNotifierWithClient(sns.NewFromConfig(cfg), topicARN, log), nil
}

func NewSNSNotifierWithClient(client SNSService, topicARN string, log logger.Logger) *SNSNotifier {
	return &SNSNotifier{
		client:   client,
		topicARN: topicARN,
		logger:   log.With(map[string]interface{}{"notifier": "sns"}),
	}
}

// NotifyUrgent publishes alert as a JSON message.
func (n *SNSNotifier) NotifyUrgent(ctx context.Context, alert models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		metrics.AlertsPublished.WithLabelValues("error").Inc()
		return apperrors.NewNotificationSendFailedError("sns", err)
	}

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(alertSubject),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"severity": {DataType: aws.String("String"), StringValue: aws.String("urgent")},
			"location": {DataType: aws.String("String"), StringValue: aws.String(locationOrUnknown(alert.Location))},
		},
	})
	if err != nil {
		metrics.AlertsPublished.WithLabelValues("error").Inc()
		return apperrors.NewNotificationSendFailedError("sns", err)
	}

	metrics.AlertsPublished.WithLabelValues("ok").Inc()
	n.logger.Info("urgent alert published", map[string]interface{}{
		"requestId": alert.RequestID,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}

func locationOrUnknown(loc string) string {
	if loc == "" {
		return "unknown"
	}
	return loc
}
