package handlers

import "time"

// LogSendRequest is the request for logging a send through the API.
type LogSendRequest struct {
	Body *struct {
		Subject        string `doc:"Message subject"         json:"subject,omitempty"         maxLength:"255"`
		RecipientEmail string `doc:"Recipient email address" json:"recipient_email,omitempty" maxLength:"255"`
	} `required:"false"`
}

// TrackedMessageBody describes the pixel references of a logged send.
type TrackedMessageBody struct {
	Message    string `doc:"Outcome message"                  json:"message"`
	TrackingID string `doc:"Tracking identifier"              json:"tracking_id"                      example:"1b4e28ba-2fa1-41d2-883f-0016d3cca427"`
	PixelURL   string `doc:"URL of the tracking pixel"        json:"pixel_url"`
	HTMLPixel  string `doc:"Image tag to embed in the message" json:"html_pixel"`
	ReportURL  string `doc:"URL of the open report"           json:"report_url"`
}

// LogSendResponse is the response for a logged send.
type LogSendResponse struct {
	Body TrackedMessageBody
}

// ComposeRequest is the request for composing and sending a tracked email.
type ComposeRequest struct {
	Body struct {
		Recipient string `doc:"Recipient email address"  format:"email" json:"recipient" maxLength:"255"`
		Subject   string `doc:"Message subject"          json:"subject"  maxLength:"255" minLength:"1"`
		BodyHTML  string `doc:"HTML body of the message" json:"body_html"`
	}
}

// ComposeResponse is the response for a sent tracked email.
type ComposeResponse struct {
	Body TrackedMessageBody
}

// TrackingIDParam selects one send by identifier.
type TrackingIDParam struct {
	TrackingID string `doc:"Tracking identifier" path:"tracking_id"`
}

// OpenBody is one recorded open.
type OpenBody struct {
	OpenedAt       time.Time `json:"opened_at"`
	OpenerIP       string    `json:"opener_ip,omitempty"`
	OpenerLocation string    `json:"opener_location,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
}

// SendBody is one logged send.
type SendBody struct {
	TrackingID     string    `json:"tracking_id"`
	SentAt         time.Time `json:"sent_at"`
	Subject        string    `json:"subject,omitempty"`
	RecipientEmail string    `json:"recipient_email,omitempty"`
	SenderIP       string    `json:"sender_ip,omitempty"`
	SenderLocation string    `json:"sender_location,omitempty"`
}

// ReportResponse is the open report of one send.
type ReportResponse struct {
	Body struct {
		Send       SendBody   `json:"send"`
		TotalOpens int        `json:"total_opens"`
		Opens      []OpenBody `json:"opens"`
	}
}

// ListSendsRequest selects one page of the caller's sends.
type ListSendsRequest struct {
	Page     int `default:"1"  doc:"1-based page number" minimum:"1"                query:"page"`
	PageSize int `default:"15" doc:"Sends per page"      maximum:"100" minimum:"1" query:"page_size"`
}

// ListSendsResponse is one page of the caller's sends, most recent first.
type ListSendsResponse struct {
	Body struct {
		Items    []SendBody `json:"items"`
		Total    int        `json:"total"`
		Page     int        `json:"page"`
		PageSize int        `json:"page_size"`
		Pages    int        `json:"pages"`
	}
}
