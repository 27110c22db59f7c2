// Package inventory tracks donated blood as individually consumable units.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"donateblood/m/domain"
)

// Ledger reads and consumes donation units. Every unit flip is a single
// conditional update, so concurrent consumers never share a unit.
type Ledger struct {
	db  *sqlx.DB
	log *zap.Logger
}

func New(db *sqlx.DB, log *zap.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

const unitColumns = `d.donation_id, da.hospital_id, da.blood_type_id, d.donation_date, d.status`

// AvailableUnits counts the Available units at a hospital for a blood type.
func (l *Ledger) AvailableUnits(ctx context.Context, hospitalID, bloodTypeID int64) (int64, error) {
	var n int64
	err := l.db.GetContext(ctx, &n, l.db.Rebind(`SELECT COUNT(*)
        FROM donations d
        JOIN donor_appointments da ON da.id = d.donor_appointment_id
        WHERE da.hospital_id = ? AND da.blood_type_id = ? AND d.status = ?`),
		hospitalID, bloodTypeID, domain.UnitAvailable)
	if err != nil {
		return 0, fmt.Errorf("count available units: %w", err)
	}
	return n, nil
}

// ConsumeOldest marks up to maxUnits Available units as Used, oldest
// donation first, and returns the units it actually flipped in that order.
// A unit taken by a concurrent consumer between selection and update is
// skipped, so fewer than maxUnits may come back.
func (l *Ledger) ConsumeOldest(ctx context.Context, hospitalID, bloodTypeID, maxUnits int64) ([]domain.DonationUnit, error) {
	consumed := []domain.DonationUnit{}
	if maxUnits <= 0 {
		return consumed, nil
	}

	var candidates []domain.DonationUnit
	err := l.db.SelectContext(ctx, &candidates, l.db.Rebind(`SELECT `+unitColumns+`
        FROM donations d
        JOIN donor_appointments da ON da.id = d.donor_appointment_id
        WHERE da.hospital_id = ? AND da.blood_type_id = ? AND d.status = ?
        ORDER BY d.donation_date ASC, d.donation_id ASC
        LIMIT ?`),
		hospitalID, bloodTypeID, domain.UnitAvailable, maxUnits)
	if err != nil {
		return nil, fmt.Errorf("select available units: %w", err)
	}

	for _, unit := range candidates {
		res, err := l.db.ExecContext(ctx, l.db.Rebind(`UPDATE donations SET status = ? WHERE donation_id = ? AND status = ?`),
			domain.UnitUsed, unit.ID, domain.UnitAvailable)
		if err != nil {
			return consumed, fmt.Errorf("consume unit %d: %w", unit.ID, err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			l.log.Debug("donation unit already consumed", zap.Int64("donation_id", unit.ID))
			continue
		}
		unit.Status = domain.UnitUsed
		consumed = append(consumed, unit)
	}
	return consumed, nil
}

// HospitalsWithStock lists hospitals holding at least minUnits Available
// units of the blood type.
func (l *Ledger) HospitalsWithStock(ctx context.Context, bloodTypeID, minUnits int64) ([]int64, error) {
	ids := []int64{}
	err := l.db.SelectContext(ctx, &ids, l.db.Rebind(`SELECT da.hospital_id
        FROM donations d
        JOIN donor_appointments da ON da.id = d.donor_appointment_id
        WHERE da.blood_type_id = ? AND d.status = ?
        GROUP BY da.hospital_id
        HAVING COUNT(*) >= ?
        ORDER BY da.hospital_id`),
		bloodTypeID, domain.UnitAvailable, minUnits)
	if err != nil {
		return nil, fmt.Errorf("hospitals with stock: %w", err)
	}
	return ids, nil
}

// RecordDonation books a donor appointment and stores one Available unit
// collected at it. donationDate accepts YYYY-MM-DD or RFC 3339; empty means
// now.
func (l *Ledger) RecordDonation(ctx context.Context, hospitalID, bloodTypeID int64, donorUserID *int64, donationDate string) (domain.DonationUnit, error) {
	when, err := parseDonationDate(donationDate)
	if err != nil {
		return domain.DonationUnit{}, domain.Invalid("donation_date", "Invalid date")
	}

	var appointmentID int64
	err = l.db.QueryRowxContext(ctx, l.db.Rebind(`INSERT INTO donor_appointments (donor_id, hospital_id, blood_type_id, appointment_date)
        VALUES (?, ?, ?, ?) RETURNING id`),
		donorUserID, hospitalID, bloodTypeID, when).Scan(&appointmentID)
	if err != nil {
		return domain.DonationUnit{}, fmt.Errorf("create donor appointment: %w", err)
	}

	unit := domain.DonationUnit{
		HospitalID:   hospitalID,
		BloodTypeID:  bloodTypeID,
		DonationDate: when,
		Status:       domain.UnitAvailable,
	}
	err = l.db.QueryRowxContext(ctx, l.db.Rebind(`INSERT INTO donations (donor_appointment_id, donation_date, status) VALUES (?, ?, ?) RETURNING donation_id`),
		appointmentID, when, domain.UnitAvailable).Scan(&unit.ID)
	if err != nil {
		return domain.DonationUnit{}, fmt.Errorf("create donation: %w", err)
	}
	return unit, nil
}

// Units lists every unit at a hospital for a blood type, oldest first.
func (l *Ledger) Units(ctx context.Context, hospitalID, bloodTypeID int64) ([]domain.DonationUnit, error) {
	units := []domain.DonationUnit{}
	err := l.db.SelectContext(ctx, &units, l.db.Rebind(`SELECT `+unitColumns+`
        FROM donations d
        JOIN donor_appointments da ON da.id = d.donor_appointment_id
        WHERE da.hospital_id = ? AND da.blood_type_id = ?
        ORDER BY d.donation_date ASC, d.donation_id ASC`),
		hospitalID, bloodTypeID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}

func parseDonationDate(s string) (string, error) {
	if s == "" {
		return time.Now().UTC().Format(time.RFC3339), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC().Format(time.RFC3339), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(time.RFC3339), nil
}
