package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// LoadHospitals ingests a name,address CSV into the hospitals table,
// ignoring hospitals that already exist. It returns the number of rows
// inserted.
func LoadHospitals(db *sqlx.DB, csvPath string, log *zap.Logger) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open hospital list %s: %w", csvPath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("read hospital header: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("start hospital seed: %w", err)
	}
	stmt, err := tx.Preparex(tx.Rebind(`INSERT INTO hospitals (hospital_name, address, created_at) VALUES (?, ?, ?)
        ON CONFLICT (hospital_name) DO NOTHING`))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare hospital insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("skipping unreadable hospital row", zap.Error(err))
			continue
		}
		name := strings.TrimSpace(record[0])
		if name == "" {
			continue
		}
		var address string
		if len(record) > 1 {
			address = strings.TrimSpace(record[1])
		}

		res, err := stmt.Exec(name, address, createdAt)
		if err != nil {
			log.Warn("unable to insert hospital", zap.String("name", name), zap.Error(err))
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit hospital seed: %w", err)
	}
	log.Info("seeded hospitals", zap.String("path", csvPath), zap.Int("rows", rows))
	return rows, nil
}
