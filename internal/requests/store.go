// Package requests manages blood requests: listing, creation, fulfillment
// from the inventory ledger, transfer between hospitals and cancellation.
//
// Multi-record changes are chained single-row conditional updates rather
// than transactions; each operation documents the window it leaves open.
package requests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"donateblood/m/domain"
	"donateblood/m/internal/database"
)

// DB is the part of *sqlx.DB the store issues statements through.
type DB interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Ledger is the inventory of donation units.
type Ledger interface {
	AvailableUnits(ctx context.Context, hospitalID, bloodTypeID int64) (int64, error)
	ConsumeOldest(ctx context.Context, hospitalID, bloodTypeID, maxUnits int64) ([]domain.DonationUnit, error)
	HospitalsWithStock(ctx context.Context, bloodTypeID, minUnits int64) ([]int64, error)
}

// Profiles upserts recipient identities by email.
type Profiles interface {
	FindOrCreate(ctx context.Context, p domain.Profile, rawPassword string) (int64, error)
}

// Directory resolves reference data and returns *domain.NotFoundError for
// unknown ids.
type Directory interface {
	HospitalName(ctx context.Context, id int64) (string, error)
	BloodTypeLabel(ctx context.Context, id int64) (string, error)
}

// Notifier delivers a message from a hospital to a user.
type Notifier interface {
	Send(ctx context.Context, fromHospitalID, toUserID int64, text string) error
}

type Store struct {
	db        DB
	ledger    Ledger
	profiles  Profiles
	directory Directory
	notifier  Notifier
	log       *zap.Logger
	dialect   goqu.DialectWrapper
}

func New(db DB, ledger Ledger, profiles Profiles, directory Directory, notifier Notifier, log *zap.Logger) *Store {
	return &Store{
		db:        db,
		ledger:    ledger,
		profiles:  profiles,
		directory: directory,
		notifier:  notifier,
		log:       log,
		dialect:   goqu.Dialect(database.Dialect(db)),
	}
}

const requestColumns = `id, user_id, hospital_id, blood_type_id, quantity, status, urgency, request_date, required_date,
        target_hospital_id, source_request_id, created_by, cancel_reason, cancelled_at`

// Get returns the request or a *domain.NotFoundError.
func (s *Store) Get(ctx context.Context, id int64) (domain.BloodRequest, error) {
	var req domain.BloodRequest
	err := s.db.GetContext(ctx, &req, s.db.Rebind(`SELECT `+requestColumns+` FROM blood_requests WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BloodRequest{}, &domain.NotFoundError{Entity: "blood request", ID: id}
	}
	if err != nil {
		return domain.BloodRequest{}, fmt.Errorf("get blood request %d: %w", id, err)
	}
	return req, nil
}

// ListForHospital lists requests, newest required date first, for one
// hospital or for all of them when hospitalID is nil. Each row is annotated
// with whether its hospital holds enough stock to complete it and with the
// other hospitals that do.
func (s *Store) ListForHospital(ctx context.Context, hospitalID *int64) ([]domain.RequestRow, error) {
	ds := s.dialect.From(goqu.T("blood_requests").As("br")).
		Select(
			goqu.I("br.id").As("request_id"),
			goqu.I("br.quantity").As("quantity"),
			goqu.I("br.status").As("status"),
			goqu.I("br.required_date").As("required_date"),
			goqu.I("br.request_date").As("request_date"),
			goqu.I("br.urgency").As("urgency"),
			goqu.I("br.hospital_id").As("hospital_id"),
			goqu.I("br.blood_type_id").As("blood_type_id"),
			goqu.I("br.target_hospital_id").As("target_hospital_id"),
			goqu.I("br.cancel_reason").As("cancel_reason"),
			goqu.I("u.username").As("username"),
			goqu.I("u.email").As("email"),
			goqu.I("u.phone").As("phone"),
			goqu.I("u.gender").As("gender"),
			goqu.I("u.dateofbirth").As("date_of_birth"),
			goqu.I("u.address").As("address"),
			goqu.I("bt.blood_type").As("blood_type"),
			goqu.I("h.hospital_name").As("hospital_name"),
			goqu.I("th.hospital_name").As("target_hospital_name"),
		).
		LeftJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("br.user_id")))).
		InnerJoin(goqu.T("blood_types").As("bt"), goqu.On(goqu.I("bt.id").Eq(goqu.I("br.blood_type_id")))).
		InnerJoin(goqu.T("hospitals").As("h"), goqu.On(goqu.I("h.id").Eq(goqu.I("br.hospital_id")))).
		LeftJoin(goqu.T("hospitals").As("th"), goqu.On(goqu.I("th.id").Eq(goqu.I("br.target_hospital_id")))).
		Order(goqu.I("br.required_date").Desc(), goqu.I("br.id").Desc())
	if hospitalID != nil {
		ds = ds.Where(goqu.I("br.hospital_id").Eq(*hospitalID))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build listing query: %w", err)
	}

	rows := []domain.RequestRow{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list blood requests: %w", err)
	}

	type site struct{ hospital, bloodType int64 }
	type need struct{ bloodType, quantity int64 }
	available := map[site]int64{}
	stocked := map[need][]int64{}

	for i := range rows {
		row := &rows[i]

		key := site{row.HospitalID, row.BloodTypeID}
		units, ok := available[key]
		if !ok {
			if units, err = s.ledger.AvailableUnits(ctx, row.HospitalID, row.BloodTypeID); err != nil {
				return nil, err
			}
			available[key] = units
		}
		row.CanComplete = units >= row.Quantity

		nk := need{row.BloodTypeID, row.Quantity}
		ids, ok := stocked[nk]
		if !ok {
			if ids, err = s.ledger.HospitalsWithStock(ctx, row.BloodTypeID, row.Quantity); err != nil {
				return nil, err
			}
			stocked[nk] = ids
		}
		row.EligibleTargetHospitalIDs = make([]int64, 0, len(ids))
		for _, id := range ids {
			if id != row.HospitalID {
				row.EligibleTargetHospitalIDs = append(row.EligibleTargetHospitalIDs, id)
			}
		}
	}
	return rows, nil
}

// FulfillmentRecords lists the units consumed for a request.
func (s *Store) FulfillmentRecords(ctx context.Context, requestID int64) ([]domain.FulfillmentRecord, error) {
	records := []domain.FulfillmentRecord{}
	err := s.db.SelectContext(ctx, &records, s.db.Rebind(`SELECT id, blood_request_id, donation_id, quantity_used, fulfillment_date, fulfilled_by
        FROM request_fulfillments WHERE blood_request_id = ? ORDER BY id`), requestID)
	if err != nil {
		return nil, fmt.Errorf("list fulfillments for request %d: %w", requestID, err)
	}
	return records, nil
}

// notify sends a best-effort message; delivery failures are logged only.
func (s *Store) notify(ctx context.Context, req domain.BloodRequest, text string) {
	if req.UserID == nil {
		return
	}
	if err := s.notifier.Send(ctx, req.HospitalID, *req.UserID, text); err != nil {
		s.log.Warn("notification failed",
			zap.Int64("request_id", req.ID),
			zap.Int64("user_id", *req.UserID),
			zap.Error(err))
	}
}
