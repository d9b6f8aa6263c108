// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"encoding/json"
	"errors"
	"time"
)

// DefaultMailQueue is the durable queue carrying outbound mail.
const DefaultMailQueue = "mail.outbound"

// MailRequestedEvent is published when the API wants an e-mail delivered.
// It is self contained so the mailer never needs the primary database.
type MailRequestedEvent struct {
	To          string `json:"to"`
	Subject     string `json:"subject"`
	HTML        string `json:"html"`
	RequestedAt string `json:"requested_at"` // RFC 3339, UTC
}

// NewMailRequested stamps an event with the request time.
func NewMailRequested(to, subject, html string, now time.Time) MailRequestedEvent {
	return MailRequestedEvent{
		To:          to,
		Subject:     subject,
		HTML:        html,
		RequestedAt: now.UTC().Format(time.RFC3339),
	}
}

// DecodeMailRequested parses and sanity-checks a delivery body.
func DecodeMailRequested(body []byte) (MailRequestedEvent, error) {
	var ev MailRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return MailRequestedEvent{}, err
	}
	if ev.To == "" {
		return MailRequestedEvent{}, errors.New("mail event without recipient")
	}
	return ev, nil
}
