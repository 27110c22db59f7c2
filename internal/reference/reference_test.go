package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donateblood/m/domain"
	"donateblood/m/internal/database"
	"donateblood/m/internal/migrations"
)

func newTestStore(t *testing.T) (*Store, *sqlx.DB) {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return New(db), db
}

func TestHospitalLookups(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateHospital(ctx, "  City General ", "1 Main St")
	require.NoError(t, err)

	name, err := store.HospitalName(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "City General", name)

	hospitals, err := store.Hospitals(ctx)
	require.NoError(t, err)
	require.Len(t, hospitals, 1)
	assert.Equal(t, "1 Main St", hospitals[0].Address)

	_, err = store.HospitalName(ctx, id+1)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "hospital", nf.Entity)
}

func TestCreateHospitalRequiresName(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.CreateHospital(context.Background(), " ", "")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Fields[0].Field)
}

func TestBloodTypeLabel(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	db.MustExec(`INSERT INTO blood_types (blood_type) VALUES ('O-'), ('AB+')`)

	label, err := store.BloodTypeLabel(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "AB+", label)

	types, err := store.BloodTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 2)

	_, err = store.BloodTypeLabel(ctx, 9)
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestHospitalNameWrapsDriverErrors(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT hospital_name FROM hospitals`).
		WithArgs(int64(3)).
		WillReturnError(errors.New("connection reset"))

	_, err = New(sqlx.NewDb(mockDB, "sqlmock")).HospitalName(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	var nf *domain.NotFoundError
	assert.False(t, errors.As(err, &nf))
	assert.NoError(t, mock.ExpectationsWereMet())
}
