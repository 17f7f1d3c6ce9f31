package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigbridge/gigbridge-backend/api/middleware"
	internalbookings "github.com/gigbridge/gigbridge-backend/internal/bookings"
	internalsettlement "github.com/gigbridge/gigbridge-backend/internal/settlement"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
)

type stubSettlement struct {
	internalsettlement.Service
	status     *internalsettlement.StatusResult
	awaitErr   error
	confirmErr error
	polls      int
	confirmed  []string
	policy     internalsettlement.Policy
}

func (s *stubSettlement) Status(context.Context, string) (*internalsettlement.StatusResult, error) {
	if s.status == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
	}
	copied := *s.status
	return &copied, nil
}

func (s *stubSettlement) PollStatus(ctx context.Context, orderID string) (*internalsettlement.StatusResult, error) {
	s.polls++
	return s.Status(ctx, orderID)
}

func (s *stubSettlement) ConfirmAndSettle(_ context.Context, orderID, paymentID, signature string) (*internalsettlement.StatusResult, error) {
	s.confirmed = append(s.confirmed, orderID+"|"+paymentID+"|"+signature)
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	settled := *s.status
	settled.Settled = true
	settled.OrderStatus = enums.PaymentOrderStatusPaid
	settled.BookingStatus = enums.BookingStatusSettled
	return &settled, nil
}

func (s *stubSettlement) AwaitSettlement(_ context.Context, _ string, policy internalsettlement.Policy) (*internalsettlement.StatusResult, error) {
	s.policy = policy
	copied := *s.status
	return &copied, s.awaitErr
}

type stubBookings struct {
	internalbookings.Service
	clientID uuid.UUID
}

func (s stubBookings) Get(_ context.Context, actor internalbookings.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	if actor.UserID != s.clientID && !actor.Privileged() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return &models.Booking{ID: bookingID, ClientID: s.clientID}, nil
}

type fixture struct {
	svc      *stubSettlement
	clientID uuid.UUID
	router   http.Handler
}

func newFixture() *fixture {
	clientID := uuid.New()
	svc := &stubSettlement{status: &internalsettlement.StatusResult{
		OrderID:       "order_1",
		BookingID:     uuid.New(),
		OrderStatus:   enums.PaymentOrderStatusCreated,
		BookingStatus: enums.BookingStatusSettlementPending,
		AmountMinor:   2599,
		Currency:      enums.CurrencyINR,
	}}
	bookings := stubBookings{clientID: clientID}
	policy := internalsettlement.Policy{Interval: time.Millisecond, MaxAttempts: 2}

	r := chi.NewRouter()
	r.Get("/settlement/{orderId}/status", Status(svc, bookings, nil))
	r.Post("/settlement/{orderId}/confirm", Confirm(svc, bookings, nil))
	r.Post("/settlement/{orderId}/await", Await(svc, bookings, policy, nil))
	return &fixture{svc: svc, clientID: clientID, router: r}
}

func (f *fixture) do(method, path, body string, userID uuid.UUID, role enums.ActorRole) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	ctx := middleware.WithPrincipal(req.Context(), middleware.Principal{UserID: userID, Role: role})
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func dataOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func TestStatusFormatsAmount(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/settlement/order_1/status", "", f.clientID, enums.ActorRoleClient)

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataOf(t, rec)
	assert.Equal(t, "25.99", data["amount"])
	assert.Equal(t, "order_1", data["order_id"])
	assert.Zero(t, f.svc.polls)
}

func TestStatusRefreshPollsGateway(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/settlement/order_1/status?refresh=true", "", f.clientID, enums.ActorRoleClient)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.svc.polls)
}

func TestStatusHiddenFromStrangers(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/settlement/order_1/status", "", uuid.New(), enums.ActorRoleClient)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusAllowsAdmin(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/settlement/order_1/status", "", uuid.New(), enums.ActorRoleAdmin)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestConfirmSettles(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/settlement/order_1/confirm", `{"payment_id":"pay_1","signature":"abcdef0123"}`, f.clientID, enums.ActorRoleClient)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"order_1|pay_1|abcdef0123"}, f.svc.confirmed)
	assert.Equal(t, true, dataOf(t, rec)["settled"])
}

func TestConfirmRejectsMalformedSignature(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/settlement/order_1/confirm", `{"payment_id":"pay_1","signature":"not hex"}`, f.clientID, enums.ActorRoleClient)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.svc.confirmed)
}

func TestConfirmSurfacesSignatureRejection(t *testing.T) {
	f := newFixture()
	f.svc.confirmErr = pkgerrors.New(pkgerrors.CodeSignatureRejected, "hmac mismatch")
	rec := f.do(http.MethodPost, "/settlement/order_1/confirm", `{"payment_id":"pay_1","signature":"deadbeef"}`, f.clientID, enums.ActorRoleClient)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(pkgerrors.CodeSignatureRejected))
	assert.NotContains(t, rec.Body.String(), "hmac")
}

func TestAwaitTimeoutAnswersAccepted(t *testing.T) {
	f := newFixture()
	f.svc.awaitErr = pkgerrors.New(pkgerrors.CodeReconciliationTimeout, "payment not yet confirmed")
	rec := f.do(http.MethodPost, "/settlement/order_1/await", "", f.clientID, enums.ActorRoleClient)

	require.Equal(t, http.StatusAccepted, rec.Code)
	data := dataOf(t, rec)
	assert.Equal(t, false, data["settled"])
	assert.Equal(t, string(enums.BookingStatusSettlementPending), data["booking_status"])
	assert.Equal(t, 2, f.svc.policy.MaxAttempts)
}

func TestAwaitReturnsSettledState(t *testing.T) {
	f := newFixture()
	f.svc.status.Settled = true
	rec := f.do(http.MethodPost, "/settlement/order_1/await", "", f.clientID, enums.ActorRoleClient)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, dataOf(t, rec)["settled"])
}
