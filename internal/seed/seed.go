// Package seed loads the reference data and bootstrap admin a fresh
// database needs.
package seed

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"donateblood/m/internal/identity"
)

// BloodTypeLabels are the ABO/Rh groups, in id order.
var BloodTypeLabels = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// BloodTypes inserts any missing blood type labels.
func BloodTypes(db *sqlx.DB) error {
	for _, label := range BloodTypeLabels {
		_, err := db.Exec(db.Rebind(`INSERT INTO blood_types (blood_type) VALUES (?) ON CONFLICT (blood_type) DO NOTHING`), label)
		if err != nil {
			return fmt.Errorf("seed blood type %s: %w", label, err)
		}
	}
	return nil
}

// EnsureAdmin creates an unbound admin for email unless the address is
// already registered. An empty email or password is a no-op.
func EnsureAdmin(ctx context.Context, users *identity.Store, email, password string, log *zap.Logger) error {
	if email == "" || password == "" {
		return nil
	}
	exists, err := users.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	id, err := users.CreateAdmin(ctx, "Administrator", email, password, nil)
	if err != nil {
		return err
	}
	log.Info("created bootstrap admin", zap.Int64("user_id", id), zap.String("email", identity.NormalizeEmail(email)))
	return nil
}
