// internal/models/notification.go
package models

// Cosigner is one guarantor contacted on submission.
type Cosigner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Notification struct {
	ID        string `json:"id"`
	ProcessID string `json:"processId"`
	Recipient string `json:"recipient"`
	Type      string `json:"type"`    // "cosigner_consent"
	Channel   string `json:"channel"` // "email", "sms"
	Status    string `json:"status"`  // "sent", "failed", "disabled"
	MessageID string `json:"messageId,omitempty"`
	SentAt    string `json:"sentAt,omitempty"`
}

type NotificationTemplate struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	HTMLBody string `json:"htmlBody,omitempty"`
	SMSBody  string `json:"smsBody,omitempty"`
}
