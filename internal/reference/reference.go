// Package reference serves hospital and blood type lookups.
package reference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"donateblood/m/domain"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Hospitals(ctx context.Context) ([]domain.Hospital, error) {
	hospitals := []domain.Hospital{}
	if err := s.db.SelectContext(ctx, &hospitals, `SELECT id, hospital_name, address, created_at FROM hospitals ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}
	return hospitals, nil
}

func (s *Store) BloodTypes(ctx context.Context) ([]domain.BloodType, error) {
	types := []domain.BloodType{}
	if err := s.db.SelectContext(ctx, &types, `SELECT id, blood_type FROM blood_types ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list blood types: %w", err)
	}
	return types, nil
}

// HospitalName returns a NotFoundError for unknown ids.
func (s *Store) HospitalName(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.db.GetContext(ctx, &name, s.db.Rebind(`SELECT hospital_name FROM hospitals WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &domain.NotFoundError{Entity: "hospital", ID: id}
	}
	if err != nil {
		return "", fmt.Errorf("find hospital %d: %w", id, err)
	}
	return name, nil
}

// BloodTypeLabel returns a NotFoundError for unknown ids.
func (s *Store) BloodTypeLabel(ctx context.Context, id int64) (string, error) {
	var label string
	err := s.db.GetContext(ctx, &label, s.db.Rebind(`SELECT blood_type FROM blood_types WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &domain.NotFoundError{Entity: "blood type", ID: id}
	}
	if err != nil {
		return "", fmt.Errorf("find blood type %d: %w", id, err)
	}
	return label, nil
}

func (s *Store) CreateHospital(ctx context.Context, name, address string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, domain.Invalid("name", "Name is required")
	}
	var id int64
	err := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`INSERT INTO hospitals (hospital_name, address, created_at) VALUES (?, ?, ?) RETURNING id`),
		name, strings.TrimSpace(address), time.Now().UTC().Format(time.RFC3339)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create hospital: %w", err)
	}
	return id, nil
}
