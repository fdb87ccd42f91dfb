// Package notify contacts co-signers when an application with a co-signed
// guarantee is submitted.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	awsclient "rental-process/internal/common/aws"
	"rental-process/internal/common/logger"
	"rental-process/internal/common/metrics"
	"rental-process/internal/common/validation"
	"rental-process/internal/models"
)

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
	ErrInvalidRecipient       = errors.New("INVALID_RECIPIENT")
)

const (
	TypeCosignerConsent = "cosigner_consent"

	ChannelEmail = "email"
	ChannelSMS   = "sms"

	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

// Notifier reaches every co-signer of a submitted process.
type Notifier interface {
	NotifyCosigners(ctx context.Context, processID string, cosigners []models.Cosigner, data map[string]string) ([]models.Notification, error)
}

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	SenderID     string
}

type AWSNotifier struct {
	config    Config
	ses       awsclient.EmailSender
	sns       awsclient.SMSPublisher
	templates map[string]models.NotificationTemplate
	logger    logger.Logger
	now       func() time.Time
}

func NewAWSNotifier(cfg Config, sesClient awsclient.EmailSender, snsClient awsclient.SMSPublisher, log logger.Logger) *AWSNotifier {
	return &AWSNotifier{
		config:    cfg,
		ses:       sesClient,
		sns:       snsClient,
		templates: defaultTemplates(),
		logger:    logger.ForComponent(log, "notify"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NotifyCosigners emails each co-signer and texts those with a phone number.
// The first failure stops the run and is returned wrapped in ErrNotificationSendFailed.
func (n *AWSNotifier) NotifyCosigners(ctx context.Context, processID string, cosigners []models.Cosigner, data map[string]string) ([]models.Notification, error) {
	tmpl := n.templates[TypeCosignerConsent]
	sent := make([]models.Notification, 0, len(cosigners)*2)

	for _, c := range cosigners {
		if !validation.ValidateEmail(c.Email) {
			return sent, fmt.Errorf("%w: %w: email %q", ErrNotificationSendFailed, ErrInvalidRecipient, c.Email)
		}

		vars := map[string]string{
			"processId":    processID,
			"cosignerName": c.Name,
		}
		for k, v := range data {
			vars[k] = v
		}

		note := n.newNotification(processID, c.Email, ChannelEmail)
		if n.config.EmailEnabled {
			messageID, err := n.sendEmail(ctx, c.Email,
				renderTemplate(tmpl.Subject, vars),
				renderTemplate(tmpl.Body, vars),
				renderTemplate(tmpl.HTMLBody, vars))
			if err != nil {
				n.record(note, StatusFailed)
				n.logger.WithError(err).Error("email send failed", map[string]interface{}{
					"processId": processID,
					"email":     c.Email,
				})
				return sent, fmt.Errorf("%w: email to %s: %v", ErrNotificationSendFailed, c.Email, err)
			}
			note.MessageID = messageID
			note.Status = StatusSent
		}
		sent = append(sent, n.record(note, note.Status))

		if c.Phone == "" || !n.config.SMSEnabled {
			continue
		}
		if !validation.ValidatePhone(c.Phone) {
			n.logger.Warn("skipping sms to malformed phone", map[string]interface{}{
				"processId": processID,
				"phone":     c.Phone,
			})
			continue
		}
		sms := n.newNotification(processID, c.Phone, ChannelSMS)
		messageID, err := n.sendSMS(ctx, c.Phone, renderTemplate(tmpl.SMSBody, vars))
		if err != nil {
			n.record(sms, StatusFailed)
			n.logger.WithError(err).Error("sms send failed", map[string]interface{}{
				"processId": processID,
				"phone":     c.Phone,
			})
			return sent, fmt.Errorf("%w: sms to %s: %v", ErrNotificationSendFailed, c.Phone, err)
		}
		sms.MessageID = messageID
		sent = append(sent, n.record(sms, StatusSent))
	}

	n.logger.Info("co-signers notified", map[string]interface{}{
		"processId":     processID,
		"cosigners":     len(cosigners),
		"notifications": len(sent),
	})
	return sent, nil
}

func (n *AWSNotifier) newNotification(processID, recipient, channel string) models.Notification {
	return models.Notification{
		ID:        uuid.New().String(),
		ProcessID: processID,
		Recipient: recipient,
		Type:      TypeCosignerConsent,
		Channel:   channel,
		Status:    StatusDisabled,
	}
}

func (n *AWSNotifier) record(note models.Notification, status string) models.Notification {
	note.Status = status
	if status == StatusSent {
		note.SentAt = n.now().Format(time.RFC3339)
	}
	metrics.NotificationsSent.WithLabelValues(note.Channel, status).Inc()
	return note
}

func (n *AWSNotifier) sendEmail(ctx context.Context, to, subject, text, html string) (string, error) {
	body := &types.Body{Text: &types.Content{Data: aws.String(text)}}
	if html != "" {
		body.Html = &types.Content{Data: aws.String(html)}
	}
	out, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body:    body,
		},
		Source: aws.String(n.config.FromEmail),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

func (n *AWSNotifier) sendSMS(ctx context.Context, to, message string) (string, error) {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(normalizePhone(to)),
		Message:     aws.String(message),
	}
	if n.config.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {DataType: aws.String("String"), StringValue: aws.String(n.config.SenderID)},
		}
	}
	out, err := n.sns.Publish(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

// normalizePhone strips formatting so SNS receives an E.164-like number.
func normalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
