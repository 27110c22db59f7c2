package requests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"donateblood/m/domain"
	"donateblood/m/internal/auth"
)

// Transfer moves a pending request to another hospital: a new pending
// request is created there and the source becomes transferred. The source
// update is conditional on the quantity and status read at the start, so
// of two concurrent transfers only one can land. The loser deletes the
// request it created, by id, and fails with a *domain.StateError.
//
// It returns the id of the request created at the target.
func (s *Store) Transfer(ctx context.Context, requestID, targetHospitalID int64) (int64, error) {
	var src struct {
		Quantity   int64                `db:"quantity"`
		HospitalID int64                `db:"hospital_id"`
		Status     domain.RequestStatus `db:"status"`
	}
	err := s.db.GetContext(ctx, &src, s.db.Rebind(`SELECT quantity, hospital_id, status FROM blood_requests WHERE id = ?`), requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &domain.NotFoundError{Entity: "blood request", ID: requestID}
	}
	if err != nil {
		return 0, fmt.Errorf("read request %d: %w", requestID, err)
	}
	if src.Status.Terminal() {
		return 0, &domain.StateError{Op: "transfer", Reason: fmt.Sprintf("request %d is %s", requestID, src.Status)}
	}
	if src.Quantity <= 0 {
		return 0, domain.Invalid("quantity", "Nothing to transfer (quantity is 0)")
	}
	if targetHospitalID == src.HospitalID {
		return 0, domain.Invalid("target_hospital_id", "Target hospital must differ from the request's hospital")
	}
	if _, err := s.directory.HospitalName(ctx, targetHospitalID); err != nil {
		return 0, err
	}

	var createdBy *int64
	if admin, ok := auth.AdminFromContext(ctx); ok && admin.UserID > 0 {
		createdBy = &admin.UserID
	}

	var targetID int64
	err = s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO blood_requests
            (quantity, request_date, required_date, urgency, status, user_id, hospital_id, blood_type_id, source_request_id, created_by)
        SELECT CAST(? AS INTEGER), CAST(? AS TEXT), br.required_date, br.urgency, CAST(? AS TEXT), br.user_id,
            CAST(? AS INTEGER), br.blood_type_id, br.id, CAST(? AS INTEGER)
        FROM blood_requests br
        WHERE br.id = ?
        RETURNING id`),
		src.Quantity, now(), domain.StatusPending, targetHospitalID, createdBy, requestID).Scan(&targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &domain.StateError{Op: "transfer", Reason: "could not create target request"}
	}
	if err != nil {
		return 0, fmt.Errorf("create target request: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE blood_requests
        SET status = ?, target_hospital_id = ?
        WHERE id = ? AND quantity = ? AND status = ?`),
		domain.StatusTransferred, targetHospitalID, requestID, src.Quantity, domain.StatusPending)
	if err != nil {
		s.discardTarget(ctx, requestID, targetID)
		return 0, fmt.Errorf("update source request %d: %w", requestID, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		s.discardTarget(ctx, requestID, targetID)
		return 0, &domain.StateError{Op: "transfer", Reason: "transfer failed updating source; no changes kept"}
	}

	s.log.Info("blood request transferred",
		zap.Int64("request_id", requestID),
		zap.Int64("target_request_id", targetID),
		zap.Int64("target_hospital_id", targetHospitalID))
	return targetID, nil
}

// discardTarget removes the request created by a transfer whose source
// update did not land.
func (s *Store) discardTarget(ctx context.Context, sourceID, targetID int64) {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM blood_requests WHERE id = ? AND status = ?`), targetID, domain.StatusPending)
	if err != nil {
		s.log.Error("could not discard orphaned transfer target",
			zap.Int64("request_id", sourceID),
			zap.Int64("target_request_id", targetID),
			zap.Error(err))
	}
}
