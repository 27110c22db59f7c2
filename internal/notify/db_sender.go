package notify

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"donateblood/m/domain"
)

// DBSender stores messages in the user_messages inbox table.
type DBSender struct {
	db *sqlx.DB
}

func NewDBSender(db *sqlx.DB) *DBSender {
	return &DBSender{db: db}
}

func (s *DBSender) Send(ctx context.Context, fromHospitalID, toUserID int64, text string) error {
	msg := newMessage(fromHospitalID, toUserID, text)
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO user_messages (from_hospital_id, to_user_id, message, sent_at, is_read) VALUES (?, ?, ?, ?, ?)`),
		msg.FromHospitalID, msg.ToUserID, msg.Message, msg.SentAt, false)
	if err != nil {
		return fmt.Errorf("store message for user %d: %w", toUserID, err)
	}
	return nil
}

// Inbox lists the messages sent to a user, newest first.
func (s *DBSender) Inbox(ctx context.Context, userID int64) ([]domain.UserMessage, error) {
	messages := []domain.UserMessage{}
	err := s.db.SelectContext(ctx, &messages, s.db.Rebind(`SELECT id, from_hospital_id, to_user_id, message, sent_at, is_read
        FROM user_messages WHERE to_user_id = ? ORDER BY id DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list messages for user %d: %w", userID, err)
	}
	return messages, nil
}
