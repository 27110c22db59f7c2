package migrations

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Run creates the schema used by the blood request service. Dates are
// stored as ISO-8601 text so ordering is identical on every driver.
func Run(db *sqlx.DB) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		pk = "SERIAL PRIMARY KEY"
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS hospitals (
            id {{pk}},
            hospital_name TEXT NOT NULL UNIQUE,
            address TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS blood_types (
            id {{pk}},
            blood_type TEXT NOT NULL UNIQUE
        );`,
		`CREATE TABLE IF NOT EXISTS users (
            id {{pk}},
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            phone TEXT NOT NULL DEFAULT '',
            dateofbirth TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            gender TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL,
            hospital_id INTEGER REFERENCES hospitals(id),
            created_at TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS donor_appointments (
            id {{pk}},
            donor_id INTEGER REFERENCES users(id),
            hospital_id INTEGER NOT NULL REFERENCES hospitals(id),
            blood_type_id INTEGER NOT NULL REFERENCES blood_types(id),
            appointment_date TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS donations (
            donation_id {{pk}},
            donor_appointment_id INTEGER NOT NULL REFERENCES donor_appointments(id),
            donation_date TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'Available'
        );`,
		`CREATE INDEX IF NOT EXISTS idx_donor_appointments_site ON donor_appointments (hospital_id, blood_type_id);`,
		`CREATE INDEX IF NOT EXISTS idx_donations_status ON donations (status, donation_date);`,
		`CREATE TABLE IF NOT EXISTS blood_requests (
            id {{pk}},
            quantity INTEGER NOT NULL,
            request_date TEXT NOT NULL,
            required_date TEXT NOT NULL,
            urgency TEXT NOT NULL DEFAULT 'MEDIUM',
            status TEXT NOT NULL DEFAULT 'pending',
            user_id INTEGER REFERENCES users(id),
            hospital_id INTEGER NOT NULL REFERENCES hospitals(id),
            blood_type_id INTEGER NOT NULL REFERENCES blood_types(id),
            target_hospital_id INTEGER REFERENCES hospitals(id),
            source_request_id INTEGER REFERENCES blood_requests(id),
            created_by INTEGER REFERENCES users(id),
            cancel_reason TEXT,
            cancelled_at TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS idx_blood_requests_hospital ON blood_requests (hospital_id, status);`,
		`CREATE TABLE IF NOT EXISTS request_fulfillments (
            id {{pk}},
            fulfillment_date TEXT NOT NULL,
            quantity_used INTEGER NOT NULL DEFAULT 1,
            donation_id INTEGER NOT NULL REFERENCES donations(donation_id),
            blood_request_id INTEGER NOT NULL REFERENCES blood_requests(id),
            fulfilled_by INTEGER REFERENCES users(id)
        );`,
		`CREATE TABLE IF NOT EXISTS user_messages (
            id {{pk}},
            from_hospital_id INTEGER NOT NULL REFERENCES hospitals(id),
            to_user_id INTEGER NOT NULL REFERENCES users(id),
            message TEXT NOT NULL,
            sent_at TEXT NOT NULL,
            is_read BOOLEAN NOT NULL DEFAULT FALSE
        );`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(strings.ReplaceAll(stmt, "{{pk}}", pk)); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
