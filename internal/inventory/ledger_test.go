package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"donateblood/m/domain"
	"donateblood/m/internal/database"
	"donateblood/m/internal/migrations"
)

func newTestLedger(t *testing.T) (*Ledger, *sqlx.DB) {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	db.MustExec(`INSERT INTO hospitals (hospital_name) VALUES ('H1'), ('H2'), ('H3'), ('H4'), ('H5')`)
	db.MustExec(`INSERT INTO blood_types (blood_type) VALUES ('A+'), ('O-')`)
	return New(db, zap.NewNop()), db
}

func stock(t *testing.T, l *Ledger, hospitalID, bloodTypeID int64, dates ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(dates))
	for _, d := range dates {
		unit, err := l.RecordDonation(context.Background(), hospitalID, bloodTypeID, nil, d)
		require.NoError(t, err)
		ids = append(ids, unit.ID)
	}
	return ids
}

func TestConsumeOldestTakesOldestFirst(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	ids := stock(t, ledger, 5, 2, "2024-03-05", "2024-03-01", "2024-03-04", "2024-03-02", "2024-03-03")

	consumed, err := ledger.ConsumeOldest(ctx, 5, 2, 3)
	require.NoError(t, err)
	require.Len(t, consumed, 3)
	assert.Equal(t, []int64{ids[1], ids[3], ids[4]}, unitIDs(consumed))
	for _, u := range consumed {
		assert.Equal(t, domain.UnitUsed, u.Status)
	}

	left, err := ledger.AvailableUnits(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), left)
}

func TestConsumeOldestBreaksDateTiesByID(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ids := stock(t, ledger, 1, 1, "2024-01-01", "2024-01-01", "2024-01-01")

	consumed, err := ledger.ConsumeOldest(context.Background(), 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, ids[:2], unitIDs(consumed))
}

func TestConsumeOldestStopsAtAvailableStock(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	stock(t, ledger, 1, 1, "2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04")
	stock(t, ledger, 2, 1, "2023-01-01")
	stock(t, ledger, 1, 2, "2023-01-01")

	consumed, err := ledger.ConsumeOldest(ctx, 1, 1, 10)
	require.NoError(t, err)
	assert.Len(t, consumed, 4)

	again, err := ledger.ConsumeOldest(ctx, 1, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	other, err := ledger.AvailableUnits(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
	otherType, err := ledger.AvailableUnits(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), otherType)
}

func TestConsumeOldestNonPositiveIsNoop(t *testing.T) {
	ledger, _ := newTestLedger(t)
	stock(t, ledger, 1, 1, "2024-01-01")

	for _, n := range []int64{0, -3} {
		consumed, err := ledger.ConsumeOldest(context.Background(), 1, 1, n)
		require.NoError(t, err)
		assert.Empty(t, consumed)
	}
	left, err := ledger.AvailableUnits(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), left)
}

func TestConsumeOldestNeverExceedsRequestOrReusesUnits(t *testing.T) {
	for q := int64(1); q <= 7; q++ {
		t.Run(fmt.Sprintf("q=%d", q), func(t *testing.T) {
			ledger, _ := newTestLedger(t)
			ctx := context.Background()
			stock(t, ledger, 3, 1, "2024-02-01", "2024-02-02", "2024-02-03", "2024-02-04", "2024-02-05")

			first, err := ledger.ConsumeOldest(ctx, 3, 1, q)
			require.NoError(t, err)
			assert.LessOrEqual(t, int64(len(first)), q)
			assert.True(t, sort.SliceIsSorted(first, func(i, j int) bool {
				if first[i].DonationDate != first[j].DonationDate {
					return first[i].DonationDate < first[j].DonationDate
				}
				return first[i].ID < first[j].ID
			}))

			second, err := ledger.ConsumeOldest(ctx, 3, 1, q)
			require.NoError(t, err)
			seen := map[int64]bool{}
			for _, u := range append(first, second...) {
				assert.False(t, seen[u.ID], "unit %d consumed twice", u.ID)
				seen[u.ID] = true
			}
		})
	}
}

func TestConcurrentConsumersShareNoUnit(t *testing.T) {
	ledger, _ := newTestLedger(t)
	stock(t, ledger, 1, 1, "2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken []int64
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			units, err := ledger.ConsumeOldest(context.Background(), 1, 1, 3)
			assert.NoError(t, err)
			mu.Lock()
			taken = append(taken, unitIDs(units)...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, id := range taken {
		assert.False(t, seen[id], "unit %d consumed twice", id)
		seen[id] = true
	}
	left, err := ledger.AvailableUnits(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), left+int64(len(taken)))
}

func TestConsumeOldestSkipsUnitsLostToAnotherConsumer(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	ledger := New(sqlx.NewDb(mockDB, "sqlmock"), zap.NewNop())

	rows := sqlmock.NewRows([]string{"donation_id", "hospital_id", "blood_type_id", "donation_date", "status"}).
		AddRow(11, 5, 2, "2024-01-01T00:00:00Z", "Available").
		AddRow(12, 5, 2, "2024-01-02T00:00:00Z", "Available").
		AddRow(13, 5, 2, "2024-01-03T00:00:00Z", "Available")
	mock.ExpectQuery(`SELECT d.donation_id`).
		WithArgs(int64(5), int64(2), "Available", int64(3)).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE donations SET status`).WithArgs("Used", int64(11), "Available").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE donations SET status`).WithArgs("Used", int64(12), "Available").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE donations SET status`).WithArgs("Used", int64(13), "Available").WillReturnResult(sqlmock.NewResult(0, 1))

	consumed, err := ledger.ConsumeOldest(context.Background(), 5, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 13}, unitIDs(consumed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHospitalsWithStock(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	stock(t, ledger, 1, 1, "2024-01-01", "2024-01-02")
	stock(t, ledger, 2, 1, "2024-01-01", "2024-01-02", "2024-01-03")
	stock(t, ledger, 3, 1, "2024-01-01")
	stock(t, ledger, 4, 2, "2024-01-01", "2024-01-02", "2024-01-03")

	ids, err := ledger.HospitalsWithStock(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	_, err = ledger.ConsumeOldest(ctx, 2, 1, 2)
	require.NoError(t, err)
	ids, err = ledger.HospitalsWithStock(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func TestRecordDonationValidatesDate(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.RecordDonation(context.Background(), 1, 1, nil, "03/01/2024")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "donation_date", verr.Fields[0].Field)

	unit, err := ledger.RecordDonation(context.Background(), 1, 1, nil, "2024-03-01T10:30:00+06:30")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T04:00:00Z", unit.DonationDate)

	units, err := ledger.Units(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, domain.UnitAvailable, units[0].Status)
}

func unitIDs(units []domain.DonationUnit) []int64 {
	ids := make([]int64, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	return ids
}
