package tracking

import (
	"time"
	"unicode/utf8"
)

const (
	// MaxUserAgentLength caps the stored client-agent string.
	MaxUserAgentLength = 255
	// UnknownUserAgent is stored when the client sends no User-Agent header.
	UnknownUserAgent = "Unknown"
)

// OwnerID identifies the user that logged a send. It is a weak reference to an
// externally managed account; the empty value means anonymous or API-originated.
type OwnerID string

// Anonymous reports whether no user owns the send.
func (o OwnerID) Anonymous() bool {
	return o == ""
}

// SendEvent is the record of one tracked message. It is never updated after creation.
// Empty strings mean the value is absent.
type SendEvent struct {
	Key            int64
	ID             ID
	CreatedAt      time.Time
	Subject        string
	RecipientEmail string
	SenderIP       string
	SenderLocation string
	Owner          OwnerID
}

// OpenEvent is one recorded fetch of a send's pixel.
type OpenEvent struct {
	Key            int64
	SendKey        int64
	OpenedAt       time.Time
	OpenerIP       string
	OpenerLocation string
	UserAgent      string
}

// NewSend carries the caller-supplied fields of a send event.
type NewSend struct {
	Subject        string
	RecipientEmail string
	SenderIP       string
	SenderLocation string
	Owner          OwnerID
}

// NewOpen carries the request-derived fields of an open event.
type NewOpen struct {
	OpenerIP       string
	OpenerLocation string
	UserAgent      string
}

// Report is a send event together with its opens, oldest first.
type Report struct {
	Send  SendEvent
	Opens []OpenEvent
}

// TotalOpens returns the number of recorded opens.
func (r *Report) TotalOpens() int {
	return len(r.Opens)
}

// Page is one page of an owner's sends, most recent first.
type Page struct {
	Items    []SendEvent
	Total    int
	Page     int
	PageSize int
}

// Pages returns the number of pages needed for Total items.
func (p *Page) Pages() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 0
	}

	return (p.Total + p.PageSize - 1) / p.PageSize
}

// NormalizeUserAgent applies the stored representation of a client agent:
// absent becomes UnknownUserAgent and long values are cut at MaxUserAgentLength runes.
func NormalizeUserAgent(ua string) string {
	if ua == "" {
		return UnknownUserAgent
	}

	if utf8.RuneCountInString(ua) <= MaxUserAgentLength {
		return ua
	}

	runes := []rune(ua)

	return string(runes[:MaxUserAgentLength])
}
