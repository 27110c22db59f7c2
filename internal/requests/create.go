package requests

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"donateblood/m/domain"
	"donateblood/m/internal/auth"
)

var phonePattern = regexp.MustCompile(`^09\d{7,11}$`)

// NewRequest is an admin-entered request on behalf of a recipient.
type NewRequest struct {
	Recipient    domain.Profile
	Password     string
	HospitalID   int64
	BloodTypeID  int64
	Quantity     int64
	Urgency      string
	RequiredDate string // YYYY-MM-DD
}

// Create upserts the recipient and inserts a pending request. An admin
// bound to a hospital in ctx always files at that hospital. Input problems
// come back together as one *domain.ValidationError.
func (s *Store) Create(ctx context.Context, in NewRequest) (int64, error) {
	admin, hasAdmin := auth.AdminFromContext(ctx)
	if hasAdmin && admin.HospitalID != nil {
		in.HospitalID = *admin.HospitalID
	}

	urgency, requiredDate, err := s.validate(ctx, in)
	if err != nil {
		return 0, err
	}

	userID, err := s.profiles.FindOrCreate(ctx, in.Recipient, in.Password)
	if err != nil {
		return 0, err
	}

	var createdBy *int64
	if hasAdmin && admin.UserID > 0 {
		createdBy = &admin.UserID
	}

	var id int64
	err = s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO blood_requests
            (quantity, request_date, required_date, urgency, status, user_id, hospital_id, blood_type_id, created_by)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		in.Quantity, now(), requiredDate, urgency, domain.StatusPending, userID, in.HospitalID, in.BloodTypeID, createdBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert blood request: %w", err)
	}

	s.log.Info("blood request created",
		zap.Int64("request_id", id),
		zap.Int64("hospital_id", in.HospitalID),
		zap.Int64("blood_type_id", in.BloodTypeID),
		zap.Int64("quantity", in.Quantity))
	return id, nil
}

func (s *Store) validate(ctx context.Context, in NewRequest) (domain.Urgency, string, error) {
	var verr domain.ValidationError

	if strings.TrimSpace(in.Recipient.Name) == "" {
		verr.Add("name", "Name is required")
	}
	if strings.TrimSpace(in.Recipient.Email) == "" {
		verr.Add("email", "Email is required")
	}
	if phone := strings.TrimSpace(in.Recipient.Phone); phone != "" && !phonePattern.MatchString(phone) {
		verr.Add("phone", "Phone must start with 09 and contain 9-13 digits total")
	}
	if in.Quantity <= 0 {
		verr.Add("quantity", "Quantity must be > 0")
	}

	urgency, err := domain.ParseUrgency(in.Urgency)
	if err != nil {
		verr.Add("urgency", "Urgency is required")
	}

	var requiredDate string
	if strings.TrimSpace(in.RequiredDate) == "" {
		verr.Add("required_date", "Required date is required")
	} else if d, err := time.Parse("2006-01-02", strings.TrimSpace(in.RequiredDate)); err != nil {
		verr.Add("required_date", "Invalid date")
	} else {
		requiredDate = d.Format("2006-01-02")
	}

	if in.HospitalID <= 0 {
		verr.Add("hospital_id", "Hospital is required")
	} else if err := s.resolve(ctx, s.directory.HospitalName, in.HospitalID); err != nil {
		if !isNotFound(err) {
			return "", "", err
		}
		verr.Add("hospital_id", "Unknown hospital")
	}

	if in.BloodTypeID <= 0 {
		verr.Add("blood_type_id", "Blood Type is required")
	} else if err := s.resolve(ctx, s.directory.BloodTypeLabel, in.BloodTypeID); err != nil {
		if !isNotFound(err) {
			return "", "", err
		}
		verr.Add("blood_type_id", "Unknown blood type")
	}

	return urgency, requiredDate, verr.OrNil()
}

func (s *Store) resolve(ctx context.Context, lookup func(context.Context, int64) (string, error), id int64) error {
	_, err := lookup(ctx, id)
	return err
}

func isNotFound(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
