package events

import "time"

const (
	// TopicSendLogged carries SendLogged events.
	TopicSendLogged = "email.send_logged"
	// TopicOpenRecorded carries OpenRecorded events.
	TopicOpenRecorded = "email.open_recorded"
)

// SendLogged is emitted after a send event has been persisted.
type SendLogged struct {
	TrackingID     string    `json:"trackingId"`
	Subject        string    `json:"subject,omitempty"`
	RecipientEmail string    `json:"recipientEmail,omitempty"`
	SenderIP       string    `json:"senderIp,omitempty"`
	SenderLocation string    `json:"senderLocation,omitempty"`
	Owner          string    `json:"owner,omitempty"`
	SentAt         time.Time `json:"sentAt"`
}

// OpenRecorded is emitted after an open event has been persisted.
type OpenRecorded struct {
	TrackingID     string    `json:"trackingId"`
	OpenerIP       string    `json:"openerIp,omitempty"`
	OpenerLocation string    `json:"openerLocation,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	OpenedAt       time.Time `json:"openedAt"`
}
