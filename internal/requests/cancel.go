package requests

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"donateblood/m/domain"
)

// ComposeCancelReason builds the stored reason. "Other" is replaced by the
// details when given; any other reason gets the details appended.
func ComposeCancelReason(reason, details string) string {
	reason = strings.TrimSpace(reason)
	details = strings.TrimSpace(details)
	if reason == "Other" {
		if details != "" {
			return details
		}
		return "Other"
	}
	if details != "" {
		return reason + " — " + details
	}
	return reason
}

// Cancel cancels a request and tells the recipient why. It returns the
// number of rows changed: 0 when the request was already cancelled, in
// which case nothing is sent. Notification failures do not undo the
// cancellation.
func (s *Store) Cancel(ctx context.Context, requestID int64, reason, details string) (int64, error) {
	if strings.TrimSpace(reason) == "" {
		return 0, domain.Invalid("reason", "Reason is required")
	}
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return 0, err
	}

	final := ComposeCancelReason(reason, details)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE blood_requests
        SET status = ?, cancel_reason = ?, cancelled_at = ?
        WHERE id = ? AND status <> ?`),
		domain.StatusCancelled, final, now(), requestID, domain.StatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("cancel request %d: %w", requestID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel request %d: %w", requestID, err)
	}
	if n == 0 {
		return 0, nil
	}

	s.log.Info("blood request cancelled", zap.Int64("request_id", requestID), zap.String("reason", final))
	s.notify(ctx, req, fmt.Sprintf("Your blood request #%d has been cancelled.\n\nReason: %s", requestID, final))
	return n, nil
}
