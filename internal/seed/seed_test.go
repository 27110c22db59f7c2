package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"donateblood/m/internal/database"
	"donateblood/m/internal/identity"
	"donateblood/m/internal/migrations"
)

func newDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return db
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hospitals.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadHospitalsSkipsDuplicatesAndBlanks(t *testing.T) {
	db := newDB(t)
	path := writeCSV(t, "name,address\n"+
		"City Hospital,\"1 Main St, Yangon\"\n"+
		" ,nowhere\n"+
		"Harbour Clinic\n"+
		"City Hospital,elsewhere\n")

	n, err := LoadHospitals(db, path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var addresses []string
	require.NoError(t, db.Select(&addresses, `SELECT address FROM hospitals ORDER BY id`))
	assert.Equal(t, []string{"1 Main St, Yangon", ""}, addresses)

	n, err = LoadHospitals(db, path, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadHospitalsMissingFile(t *testing.T) {
	_, err := LoadHospitals(newDB(t), filepath.Join(t.TempDir(), "absent.csv"), zap.NewNop())
	assert.Error(t, err)
}

func TestLoadBundledHospitalList(t *testing.T) {
	db := newDB(t)
	n, err := LoadHospitals(db, "../../assets/hospitals.csv", zap.NewNop())
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestBloodTypesIsIdempotent(t *testing.T) {
	db := newDB(t)
	require.NoError(t, BloodTypes(db))
	require.NoError(t, BloodTypes(db))

	var labels []string
	require.NoError(t, db.Select(&labels, `SELECT blood_type FROM blood_types ORDER BY id`))
	assert.Equal(t, BloodTypeLabels, labels)
}

func TestEnsureAdmin(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	users := identity.New(db, "")

	require.NoError(t, EnsureAdmin(ctx, users, "", "pw", zap.NewNop()))
	require.NoError(t, EnsureAdmin(ctx, users, "Root@Example.com", "pw", zap.NewNop()))
	require.NoError(t, EnsureAdmin(ctx, users, "root@example.com", "other", zap.NewNop()))

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 1, count)

	admin, err := users.Authenticate(ctx, "root@example.com", "pw")
	require.NoError(t, err)
	assert.Nil(t, admin.HospitalID)
}
