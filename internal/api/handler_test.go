package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"donateblood/m/domain"
	"donateblood/m/internal/auth"
	"donateblood/m/internal/database"
	"donateblood/m/internal/identity"
	"donateblood/m/internal/inventory"
	"donateblood/m/internal/migrations"
	"donateblood/m/internal/notify"
	"donateblood/m/internal/reference"
	"donateblood/m/internal/requests"
	"donateblood/m/internal/seed"
)

type testServer struct {
	db     *sqlx.DB
	srv    *httptest.Server
	issuer *auth.Issuer
	users  *identity.Store
	ledger *inventory.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	require.NoError(t, seed.BloodTypes(db))
	for i := 1; i <= 4; i++ {
		db.MustExec(`INSERT INTO hospitals (hospital_name) VALUES (?)`, fmt.Sprintf("Hospital %d", i))
	}

	log := zap.NewNop()
	ledger := inventory.New(db, log)
	users := identity.New(db, "default123")
	ref := reference.New(db)
	inbox := notify.NewDBSender(db)
	issuer := auth.NewIssuer("test-secret", time.Hour)

	h := New(Services{
		Requests:  requests.New(db, ledger, users, ref, inbox, log),
		Ledger:    ledger,
		Reference: ref,
		Users:     users,
		Inbox:     inbox,
	}, issuer, log)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &testServer{db: db, srv: srv, issuer: issuer, users: users, ledger: ledger}
}

func (ts *testServer) token(t *testing.T, hospitalID *int64) string {
	t.Helper()
	token, err := ts.issuer.Generate(domain.Admin{UserID: 1, HospitalID: hospitalID})
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func hospitalPtr(id int64) *int64 { return &id }

func newRecipient(hospitalID int64) map[string]any {
	return map[string]any{
		"name":          "Htet Htet",
		"email":         "htet@example.com",
		"phone":         "09123456789",
		"hospital_id":   hospitalID,
		"blood_type_id": 2,
		"quantity":      2,
		"urgency":       "HIGH",
		"required_date": "2024-10-01",
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/recipients", "", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/recipients", "garbage", nil).StatusCode)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.users.CreateAdmin(context.Background(), "Ward Admin", "ward@example.com", "s3cret", hospitalPtr(2))
	require.NoError(t, err)

	resp := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "WARD@example.com", "password": "s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out authResponse
	decode(t, resp, &out)
	assert.Empty(t, out.User.Password)

	admin, err := ts.issuer.Parse(out.Token)
	require.NoError(t, err)
	require.NotNil(t, admin.HospitalID)
	assert.Equal(t, int64(2), *admin.HospitalID)

	resp = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ward@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSuperAdminOnlyRoutes(t *testing.T) {
	ts := newTestServer(t)
	bound := ts.token(t, hospitalPtr(1))
	super := ts.token(t, nil)

	resp := ts.do(t, http.MethodPost, "/hospitals", bound, map[string]string{"name": "Field Clinic"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/hospitals", super, map[string]string{"name": "Field Clinic", "address": "Bago"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/admins", super, map[string]any{"name": "A", "email": "a@example.com", "password": "pw", "hospital_id": 42})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/admins", super, map[string]any{"name": "A", "email": "a@example.com", "password": "pw", "hospital_id": 5})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var hospitals []domain.Hospital
	decode(t, ts.do(t, http.MethodGet, "/hospitals", bound, nil), &hospitals)
	assert.Len(t, hospitals, 5)

	var types []domain.BloodType
	decode(t, ts.do(t, http.MethodGet, "/blood-types", bound, nil), &types)
	assert.Len(t, types, 8)
}

func TestCreateRecipientValidation(t *testing.T) {
	ts := newTestServer(t)
	body := newRecipient(1)
	body["phone"] = "123"
	body["quantity"] = 0

	resp := ts.do(t, http.MethodPost, "/recipients", ts.token(t, nil), body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, resp, &out)
	assert.Contains(t, out.Fields, "phone")
	assert.Contains(t, out.Fields, "quantity")
}

func TestRecipientLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, hospitalPtr(1))
	ctx := context.Background()
	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		_, err := ts.ledger.RecordDonation(ctx, 1, 2, nil, d)
		require.NoError(t, err)
	}

	resp := ts.do(t, http.MethodPost, "/recipients", token, newRecipient(3))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]int64
	decode(t, resp, &created)
	id := created["id"]

	var rows []domain.RequestRow
	decode(t, ts.do(t, http.MethodGet, "/recipients?hospital_id=3", token, nil), &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].HospitalID)
	assert.True(t, rows[0].CanComplete)

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/recipients/%d/complete", id), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result requests.Fulfillment
	decode(t, resp, &result)
	assert.Len(t, result.ConsumedUnitIDs, 2)

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/recipients/%d/complete", id), token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var detail recipientDetail
	decode(t, ts.do(t, http.MethodGet, fmt.Sprintf("/recipients/%d", id), token, nil), &detail)
	assert.Equal(t, domain.StatusCompleted, detail.Status)
	assert.Len(t, detail.Fulfillments, 2)

	var messages []domain.UserMessage
	decode(t, ts.do(t, http.MethodGet, fmt.Sprintf("/users/%d/messages", *detail.UserID), token, nil), &messages)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Message, "Hospital 1")
}

func TestTransferAndCancelEndpoints(t *testing.T) {
	ts := newTestServer(t)
	super := ts.token(t, nil)

	resp := ts.do(t, http.MethodPost, "/recipients", super, newRecipient(1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]int64
	decode(t, resp, &created)
	id := created["id"]

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/recipients/%d/transfer", id), super, map[string]int64{"target_hospital_id": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/recipients/%d/cancel", id), ts.token(t, hospitalPtr(2)), map[string]string{"reason": "Duplicate"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/recipients/%d/transfer", id), super, map[string]int64{"target_hospital_id": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var moved map[string]int64
	decode(t, resp, &moved)
	target := moved["target_request_id"]

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/recipients/%d/transfer", id), super, map[string]int64{"target_hospital_id": 3})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/recipients/%d/cancel", target), super, map[string]string{"reason": "Other", "details": "moved abroad"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cancelled map[string]int64
	decode(t, resp, &cancelled)
	assert.Equal(t, int64(1), cancelled["cancelled"])

	resp = ts.do(t, http.MethodPost, "/recipients/999/cancel", super, map[string]string{"reason": "Duplicate"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRecipientsByStatus(t *testing.T) {
	ts := newTestServer(t)
	super := ts.token(t, nil)

	resp := ts.do(t, http.MethodPost, "/recipients", super, newRecipient(1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]int64
	decode(t, resp, &created)
	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/recipients/%d/transfer", created["id"]), super, map[string]int64{"target_hospital_id": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rows []domain.RequestRow
	decode(t, ts.do(t, http.MethodGet, "/recipients", super, nil), &rows)
	assert.Len(t, rows, 2)

	decode(t, ts.do(t, http.MethodGet, "/recipients?status=Pending", super, nil), &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.StatusPending, rows[0].Status)
	assert.Equal(t, int64(2), rows[0].HospitalID)

	decode(t, ts.do(t, http.MethodGet, "/recipients?status=transferred", super, nil), &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, created["id"], rows[0].RequestID)

	resp = ts.do(t, http.MethodGet, "/recipients?status=lost", super, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportRecipients(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, hospitalPtr(1))
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/recipients", token, newRecipient(1)).StatusCode)

	resp := ts.do(t, http.MethodGet, "/recipients/export", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")

	book, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer book.Close()

	header, err := book.GetCellValue(recipientSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Request ID", header)
	name, err := book.GetCellValue(recipientSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Htet Htet", name)
}

func TestInventoryEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, hospitalPtr(3))

	for i := 0; i < 2; i++ {
		resp := ts.do(t, http.MethodPost, "/inventory/donations", token, map[string]any{"hospital_id": 1, "blood_type_id": 4, "donation_date": "2024-02-01"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp := ts.do(t, http.MethodPost, "/inventory/donations", token, map[string]any{"blood_type_id": 4, "donation_date": "not a date"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var available map[string]int64
	decode(t, ts.do(t, http.MethodGet, "/inventory/available?blood_type_id=4", token, nil), &available)
	assert.Equal(t, int64(3), available["hospital_id"])
	assert.Equal(t, int64(2), available["available"])

	var stocked struct {
		HospitalIDs []int64 `json:"hospital_ids"`
	}
	decode(t, ts.do(t, http.MethodGet, "/inventory/hospitals-with-stock?blood_type_id=4&min_units=2", token, nil), &stocked)
	assert.Equal(t, []int64{3}, stocked.HospitalIDs)

	resp = ts.do(t, http.MethodGet, "/inventory/available?blood_type_id=x", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
