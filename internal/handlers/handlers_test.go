package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aawaaz/grievance-engine/internal/middleware"
	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/aawaaz/grievance-engine/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func serve(h http.Handler, method, target, body string, actor *models.Actor) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestWriteServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&services.ValidationError{Field: "scope", Message: "unknown scope"}, http.StatusBadRequest, "validation_error"},
		{services.ErrForbidden, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("lookup: %w", services.ErrComplaintNotFound), http.StatusNotFound, "not_found"},
		{services.ErrRewardNotFound, http.StatusNotFound, "not_found"},
		{services.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{services.ErrInsufficientBalance, http.StatusConflict, "insufficient_balance"},
		{services.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
		{services.ErrRewardInactive, http.StatusConflict, "reward_inactive"},
		{fmt.Errorf("RESOLVED -> ASSIGNED: %w", services.ErrInvalidTransition), http.StatusUnprocessableEntity, "invalid_transition"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, testLogger(), tc.err, "do thing")
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, tc.code, decodeError(t, rec)["code"], tc.err.Error())
	}
}

func TestLeaderboardHandler(t *testing.T) {
	mock := newMock(t)
	h := NewLeaderboardHandler(services.NewLeaderboardService(mock, nil, 0, testLogger()), testLogger())
	r := chi.NewRouter()
	r.Get("/leaderboard", h.Rank)
	r.Get("/leaderboard/me", h.Me)

	mock.ExpectQuery("FROM users u").
		WithArgs("Pune", "", 0, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "city", "state", "total_earned"}).
			AddRow(uuid.New(), "Ravi", "Pune", "MH", 90))

	rec := serve(r, http.MethodGet, "/leaderboard?scope=city&city=Pune&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.LeaderboardEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Rank)

	rec = serve(r, http.MethodGet, "/leaderboard?scope=city", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mock.ExpectQuery("WHERE u.id = \\$1").WillReturnError(pgx.ErrNoRows)
	rec = serve(r, http.MethodGet, "/leaderboard/me", "", &models.Actor{ID: uuid.New(), Role: models.RoleCitizen})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, http.MethodGet, "/leaderboard/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemUnknownReward(t *testing.T) {
	mock := newMock(t)
	metrics := services.NewMetrics(prometheus.NewRegistry())
	ledger := services.NewLedger(mock, metrics, testLogger())
	h := NewEconomyHandler(ledger, services.NewRedemptionService(mock, ledger, metrics, testLogger()), nil, nil, testLogger())
	r := chi.NewRouter()
	r.Post("/rewards/{id}/redeem", h.Redeem)
	actor := &models.Actor{ID: uuid.New(), Role: models.RoleCitizen}

	mock.ExpectBegin()
	mock.ExpectQuery("FROM rewards WHERE id").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	rec := serve(r, http.MethodPost, "/rewards/"+uuid.NewString()+"/redeem", "", actor)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec)["code"])

	rec = serve(r, http.MethodPost, "/rewards/not-an-id/redeem", "", actor)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionsLimitIsCapped(t *testing.T) {
	mock := newMock(t)
	ledger := services.NewLedger(mock, services.NewMetrics(prometheus.NewRegistry()), testLogger())
	h := NewEconomyHandler(ledger, nil, nil, nil, testLogger())
	actor := &models.Actor{ID: uuid.New(), Role: models.RoleCitizen}
	txnColumns := []string{"id", "wallet_id", "amount", "reason", "reference_id", "created_at"}

	for target, want := range map[string]int{
		"/wallet/transactions?limit=100000000": maxListLimit,
		"/wallet/transactions?limit=20":        20,
		"/wallet/transactions?limit=-5":        50,
	} {
		mock.ExpectQuery("FROM coin_transactions t").
			WithArgs(actor.ID, want).
			WillReturnRows(pgxmock.NewRows(txnColumns))

		rec := serve(http.HandlerFunc(h.Transactions), http.MethodGet, target, "", actor)
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintHandlerRejectsBadInput(t *testing.T) {
	h := NewComplaintHandler(nil, testLogger())
	r := chi.NewRouter()
	r.Post("/complaints", h.Submit)
	r.Get("/complaints/{id}", h.Get)
	r.Post("/complaints/suggest-category", h.SuggestCategory)
	actor := &models.Actor{ID: uuid.New(), Role: models.RoleCitizen}

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/complaints", "{}", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/complaints", "{not json", actor).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/complaints/42", "", actor).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/complaints/suggest-category", `{"description":""}`, actor).Code)
}

func TestIntegrityVerify(t *testing.T) {
	tree := services.NewMerkleService(testLogger())
	tree.BuildFromHashes([]string{"a", "b", "c"})
	h := NewIntegrityHandler(tree, testLogger())
	r := chi.NewRouter()
	r.Get("/proof/{index}", h.GetProof)
	r.Post("/verify", h.Verify)

	rec := serve(r, http.MethodGet, "/proof/2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	proof := rec.Body.String()

	var result map[string]bool
	rec = serve(r, http.MethodPost, "/verify", proof, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.True(t, result["valid"])
	assert.True(t, result["current"])

	tree.BuildFromHashes([]string{"a", "b", "c", "d"})
	rec = serve(r, http.MethodPost, "/verify", proof, nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.True(t, result["valid"])
	assert.False(t, result["current"])

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/proof/9", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/verify", "{}", nil).Code)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	root := func() string { return "abc" }

	rec := serve(http.HandlerFunc(NewHealthHandler(stubPinger{}, nil, root, testLogger()).Ready), http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "disabled", status.Cache)
	assert.Equal(t, "abc", status.LedgerRoot)

	rec = serve(http.HandlerFunc(NewHealthHandler(stubPinger{err: errors.New("down")}, nil, root, testLogger()).Ready), http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
