package domain

import (
	"fmt"
	"strings"
)

// RequestStatus is the lifecycle state of a blood request.
type RequestStatus string

const (
	StatusPending     RequestStatus = "pending"
	StatusCompleted   RequestStatus = "completed"
	StatusCancelled   RequestStatus = "cancelled"
	StatusTransferred RequestStatus = "transferred"
)

// ParseRequestStatus accepts any casing of a known status.
func ParseRequestStatus(s string) (RequestStatus, error) {
	st := RequestStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusCompleted, StatusCancelled, StatusTransferred:
		return st, nil
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

// Terminal reports whether s can no longer be fulfilled or transferred.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusTransferred
}

// Urgency ranks how soon a request must be served.
type Urgency string

const (
	UrgencyLow      Urgency = "LOW"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

// ParseUrgency accepts any casing of a known urgency.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToUpper(strings.TrimSpace(s)))
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return u, nil
	}
	return "", fmt.Errorf("unknown urgency %q", s)
}

type BloodRequest struct {
	ID               int64         `db:"id" json:"id"`
	UserID           *int64        `db:"user_id" json:"user_id,omitempty"`
	HospitalID       int64         `db:"hospital_id" json:"hospital_id"`
	BloodTypeID      int64         `db:"blood_type_id" json:"blood_type_id"`
	Quantity         int64         `db:"quantity" json:"quantity"`
	Status           RequestStatus `db:"status" json:"status"`
	Urgency          Urgency       `db:"urgency" json:"urgency"`
	RequestDate      string        `db:"request_date" json:"request_date"`
	RequiredDate     string        `db:"required_date" json:"required_date"`
	TargetHospitalID *int64        `db:"target_hospital_id" json:"target_hospital_id,omitempty"`
	SourceRequestID  *int64        `db:"source_request_id" json:"source_request_id,omitempty"`
	CreatedBy        *int64        `db:"created_by" json:"created_by,omitempty"`
	CancelReason     *string       `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledAt      *string       `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// RequestRow is a request joined with its recipient, hospital and blood
// type, as shown on the admin listing.
type RequestRow struct {
	RequestID          int64         `db:"request_id" json:"request_id"`
	Quantity           int64         `db:"quantity" json:"quantity"`
	Status             RequestStatus `db:"status" json:"status"`
	RequiredDate       string        `db:"required_date" json:"required_date"`
	RequestDate        string        `db:"request_date" json:"request_date"`
	Urgency            Urgency       `db:"urgency" json:"urgency"`
	HospitalID         int64         `db:"hospital_id" json:"hospital_id"`
	BloodTypeID        int64         `db:"blood_type_id" json:"blood_type_id"`
	TargetHospitalID   *int64        `db:"target_hospital_id" json:"target_hospital_id,omitempty"`
	CancelReason       *string       `db:"cancel_reason" json:"cancel_reason,omitempty"`
	Username           *string       `db:"username" json:"username,omitempty"`
	Email              *string       `db:"email" json:"email,omitempty"`
	Phone              *string       `db:"phone" json:"phone,omitempty"`
	Gender             *string       `db:"gender" json:"gender,omitempty"`
	DateOfBirth        *string       `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address            *string       `db:"address" json:"address,omitempty"`
	BloodType          string        `db:"blood_type" json:"blood_type"`
	HospitalName       string        `db:"hospital_name" json:"hospital_name"`
	TargetHospitalName *string       `db:"target_hospital_name" json:"target_hospital_name,omitempty"`

	CanComplete               bool    `db:"-" json:"can_complete"`
	EligibleTargetHospitalIDs []int64 `db:"-" json:"eligible_target_hospital_ids"`
}
