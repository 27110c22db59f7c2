// Package notify delivers messages from a hospital to a user. Callers treat
// delivery as fire-and-forget.
package notify

import (
	"context"
	"errors"
	"time"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, fromHospitalID, toUserID int64, text string) error
}

// Message is the payload published by the stream and webhook senders.
type Message struct {
	FromHospitalID int64  `json:"from_hospital_id"`
	ToUserID       int64  `json:"to_user_id"`
	Message        string `json:"message"`
	SentAt         string `json:"sent_at"`
}

func newMessage(fromHospitalID, toUserID int64, text string) Message {
	return Message{
		FromHospitalID: fromHospitalID,
		ToUserID:       toUserID,
		Message:        text,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}
}

// Fanout sends every message through all of its senders and joins their
// errors.
type Fanout []Sender

func (f Fanout) Send(ctx context.Context, fromHospitalID, toUserID int64, text string) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, fromHospitalID, toUserID, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
