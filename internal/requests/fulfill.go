package requests

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"donateblood/m/domain"
	"donateblood/m/internal/auth"
)

// Fulfillment reports what a Fulfill call consumed.
type Fulfillment struct {
	RequestID       int64   `json:"request_id"`
	Requested       int64   `json:"requested"`
	ConsumedUnitIDs []int64 `json:"consumed_unit_ids"`
	// Partial is set when fewer units than requested were available. The
	// request is still completed.
	Partial bool `json:"partial"`
}

// Fulfill claims a pending request by marking it completed, then consumes
// up to units of the oldest matching stock at the request's hospital and
// records one fulfillment per consumed unit. The claim is conditional on
// the request still being pending, so a concurrent transfer, cancel or
// fulfill that lands first makes this call fail with a *domain.StateError
// before any stock is touched. The request stays completed however many
// units were found. With units <= 0 or an unresolvable blood type no stock
// is touched.
func (s *Store) Fulfill(ctx context.Context, requestID, units int64) (Fulfillment, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return Fulfillment{}, err
	}
	if req.Status.Terminal() {
		return Fulfillment{}, &domain.StateError{Op: "fulfill", Reason: fmt.Sprintf("request %d is %s", requestID, req.Status)}
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE blood_requests SET status = ? WHERE id = ? AND status = ?`),
		domain.StatusCompleted, requestID, domain.StatusPending)
	if err != nil {
		return Fulfillment{}, fmt.Errorf("complete request %d: %w", requestID, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return Fulfillment{}, &domain.StateError{Op: "fulfill", Reason: fmt.Sprintf("request %d is no longer pending", requestID)}
	}

	result := Fulfillment{RequestID: requestID, Requested: units, ConsumedUnitIDs: []int64{}}

	if _, err := s.directory.BloodTypeLabel(ctx, req.BloodTypeID); err != nil {
		if !isNotFound(err) {
			return result, err
		}
		s.log.Warn("blood type unresolved, completing without stock",
			zap.Int64("request_id", requestID), zap.Int64("blood_type_id", req.BloodTypeID))
		units = 0
	}

	var fulfilledBy *int64
	if admin, ok := auth.AdminFromContext(ctx); ok && admin.UserID > 0 {
		fulfilledBy = &admin.UserID
	}

	if units > 0 {
		consumed, consumeErr := s.ledger.ConsumeOldest(ctx, req.HospitalID, req.BloodTypeID, units)
		fulfilledAt := now()
		for _, unit := range consumed {
			_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO request_fulfillments (fulfillment_date, quantity_used, donation_id, blood_request_id, fulfilled_by)
                VALUES (?, 1, ?, ?, ?)`), fulfilledAt, unit.ID, requestID, fulfilledBy)
			if err != nil {
				return result, fmt.Errorf("record fulfillment of unit %d: %w", unit.ID, err)
			}
			result.ConsumedUnitIDs = append(result.ConsumedUnitIDs, unit.ID)
		}
		if consumeErr != nil {
			return result, consumeErr
		}
	}

	result.Partial = int64(len(result.ConsumedUnitIDs)) < result.Requested
	if result.Partial {
		s.log.Warn("request completed with partial stock",
			zap.Int64("request_id", requestID),
			zap.Int64("requested", result.Requested),
			zap.Int("consumed", len(result.ConsumedUnitIDs)))
	} else {
		s.log.Info("request fulfilled", zap.Int64("request_id", requestID), zap.Int("consumed", len(result.ConsumedUnitIDs)))
	}

	hospitalName, err := s.directory.HospitalName(ctx, req.HospitalID)
	if err != nil {
		hospitalName = fmt.Sprintf("Hospital %d", req.HospitalID)
	}
	s.notify(ctx, req, fmt.Sprintf("Your blood request has been successfully fulfilled by %s.\n\n"+
		"Please come to the hospital to collect the blood during our working hours.\n\n"+
		"Thank you for placing your trust in %s.", hospitalName, hospitalName))

	return result, nil
}
