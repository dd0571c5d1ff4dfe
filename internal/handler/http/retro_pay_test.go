package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/retropay"
	"github.com/cmlabs-hris/hris-retropay/internal/domain/user"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/jwt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	handlerTestSecret    = "test-secret-key-for-jwt"
	handlerTestAccessExp = "1h"

	testCompanyID = "0190b0a2-0000-7000-8000-000000000001"
	testUserID    = "0190b0a2-0000-7000-8000-000000000003"
	testEntryID   = "0190b0a2-0000-7000-8000-0000000000e1"
)

// stubRetroPayService records the arguments it was called with.
type stubRetroPayService struct {
	retropay.RetroPayService

	companyID string
	actorID   string
	id        string
	filter    retropay.RetroPayFilter
	year      *int
	cancel    retropay.CancelRetroPayRequest
	createReq retropay.CreateRetroPayRequest
	err       error
}

func (s *stubRetroPayService) Create(ctx context.Context, companyID, actorID string, req retropay.CreateRetroPayRequest) (retropay.CreateRetroPayResponse, error) {
	s.companyID, s.actorID, s.createReq = companyID, actorID, req
	if s.err != nil {
		return retropay.CreateRetroPayResponse{}, s.err
	}
	return retropay.CreateRetroPayResponse{
		DistributionMode: "SINGLE",
		Difference:       decimal.RequireFromString("1000"),
		MonthsCount:      3,
		TotalAmount:      decimal.RequireFromString("3000"),
		Entries:          []retropay.RetroPayEntryResponse{{ID: testEntryID, Status: "PENDING"}},
	}, nil
}

func (s *stubRetroPayService) Approve(ctx context.Context, companyID, id, approverID string) (retropay.RetroPayEntryResponse, error) {
	s.companyID, s.id, s.actorID = companyID, id, approverID
	return retropay.RetroPayEntryResponse{ID: id, Status: "APPROVED"}, s.err
}

func (s *stubRetroPayService) MarkPaid(ctx context.Context, companyID, id, actorID string) (retropay.RetroPayEntryResponse, error) {
	s.companyID, s.id, s.actorID = companyID, id, actorID
	return retropay.RetroPayEntryResponse{ID: id, Status: "PAID"}, s.err
}

func (s *stubRetroPayService) Cancel(ctx context.Context, companyID, id, actorID string, req retropay.CancelRetroPayRequest) (retropay.RetroPayEntryResponse, error) {
	s.companyID, s.id, s.actorID, s.cancel = companyID, id, actorID, req
	return retropay.RetroPayEntryResponse{ID: id, Status: "CANCELLED"}, s.err
}

func (s *stubRetroPayService) ApproveGroup(ctx context.Context, companyID, groupID, approverID string) (retropay.GroupActionResponse, error) {
	s.companyID, s.id, s.actorID = companyID, groupID, approverID
	return retropay.GroupActionResponse{GroupID: groupID, UpdatedCount: 4}, s.err
}

func (s *stubRetroPayService) CancelGroup(ctx context.Context, companyID, groupID, actorID string, req retropay.CancelRetroPayRequest) (retropay.GroupActionResponse, error) {
	s.companyID, s.id, s.actorID, s.cancel = companyID, groupID, actorID, req
	return retropay.GroupActionResponse{GroupID: groupID, UpdatedCount: 2}, s.err
}

func (s *stubRetroPayService) PayPeriod(ctx context.Context, companyID, actorID string, req retropay.PayPeriodRequest) (retropay.GroupActionResponse, error) {
	s.companyID, s.actorID = companyID, actorID
	if err := req.Validate(); err != nil {
		return retropay.GroupActionResponse{}, err
	}
	return retropay.GroupActionResponse{UpdatedCount: 1}, s.err
}

func (s *stubRetroPayService) FindAll(ctx context.Context, companyID string, filter retropay.RetroPayFilter) ([]retropay.RetroPayEntryResponse, error) {
	s.companyID, s.filter = companyID, filter
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return []retropay.RetroPayEntryResponse{}, s.err
}

func (s *stubRetroPayService) FindByID(ctx context.Context, companyID, id string) (retropay.RetroPayEntryResponse, error) {
	s.companyID, s.id = companyID, id
	return retropay.RetroPayEntryResponse{ID: id}, s.err
}

func (s *stubRetroPayService) FindByEmployee(ctx context.Context, companyID, employeeID string) ([]retropay.RetroPayEntryResponse, error) {
	s.companyID, s.id = companyID, employeeID
	return []retropay.RetroPayEntryResponse{}, s.err
}

func (s *stubRetroPayService) FindByGroup(ctx context.Context, companyID, groupID string) ([]retropay.RetroPayEntryResponse, error) {
	s.companyID, s.id = companyID, groupID
	return nil, s.err
}

func (s *stubRetroPayService) GetStats(ctx context.Context, companyID string, year *int) (retropay.RetroPayStatsResponse, error) {
	s.companyID, s.year = companyID, year
	return retropay.RetroPayStatsResponse{Year: year, PendingCount: 2}, s.err
}

type routerFixture struct {
	router http.Handler
	jwt    jwt.Service
	svc    *stubRetroPayService
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	jwtService := jwt.NewJWTService(handlerTestSecret, handlerTestAccessExp)
	svc := &stubRetroPayService{}
	router := NewRouter(jwtService, NewRetroPayHandler(svc), RouterOptions{
		AllowedOrigins: []string{"http://localhost:3000"},
		Env:            "test",
	})
	return &routerFixture{router: router, jwt: jwtService, svc: svc}
}

func (f *routerFixture) token(t *testing.T, role user.Role, companyID string) string {
	t.Helper()
	token, _, err := f.jwt.GenerateAccessToken(user.Claims{
		UserID:    testUserID,
		Email:     "owner@example.com",
		CompanyID: companyID,
		Role:      role,
	})
	require.NoError(t, err)
	return token
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestRouter_Authentication(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("missing token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/retro-pay", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := jwt.NewJWTService("another-secret", handlerTestAccessExp)
		token, _, err := other.GenerateAccessToken(user.Claims{UserID: testUserID, CompanyID: testCompanyID, Role: user.RoleOwner})
		require.NoError(t, err)

		rec := f.do(t, http.MethodGet, "/api/v1/retro-pay", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token without company", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/retro-pay", f.token(t, user.RoleOwner, ""), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("pending role", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/retro-pay", f.token(t, user.RolePending, testCompanyID), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRouter_Permissions(t *testing.T) {
	f := newRouterFixture(t)

	cases := []struct {
		name   string
		role   user.Role
		method string
		path   string
		want   int
	}{
		{"employee cannot view", user.RoleEmployee, http.MethodGet, "/api/v1/retro-pay", http.StatusForbidden},
		{"manager can view", user.RoleManager, http.MethodGet, "/api/v1/retro-pay", http.StatusOK},
		{"manager cannot approve", user.RoleManager, http.MethodPatch, "/api/v1/retro-pay/" + testEntryID + "/approve", http.StatusForbidden},
		{"manager cannot approve group", user.RoleManager, http.MethodPatch, "/api/v1/retro-pay/groups/" + testEntryID + "/approve", http.StatusForbidden},
		{"owner can approve", user.RoleOwner, http.MethodPatch, "/api/v1/retro-pay/" + testEntryID + "/approve", http.StatusOK},
		{"employee cannot create", user.RoleEmployee, http.MethodPost, "/api/v1/retro-pay", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, f.token(t, tc.role, testCompanyID), nil)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRetroPayHandler_Create(t *testing.T) {
	f := newRouterFixture(t)
	token := f.token(t, user.RoleManager, testCompanyID)

	body := map[string]interface{}{
		"employee_id":    "0190b0a2-0000-7000-8000-000000000002",
		"reason":         "Promotion",
		"effective_from": "2024-01-01",
		"effective_to":   "2024-03-31",
		"old_amount":     "5000",
		"new_amount":     "6000",
	}

	rec := f.do(t, http.MethodPost, "/api/v1/retro-pay", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, testCompanyID, f.svc.companyID)
	assert.Equal(t, testUserID, f.svc.actorID)
	assert.Equal(t, "Promotion", f.svc.createReq.Reason)
	assert.True(t, f.svc.createReq.NewAmount.Equal(decimal.RequireFromString("6000")))

	var data retropay.CreateRetroPayResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "3000", data.TotalAmount.String())
	assert.Equal(t, 3, data.MonthsCount)
}

func TestRetroPayHandler_CreateInvalidBody(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/retro-pay", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token(t, user.RoleOwner, testCompanyID))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetroPayHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"not found", retropay.ErrRetroPayNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"group not found", retropay.ErrGroupNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"already decided", fmt.Errorf("%w (current status: PAID, required: PENDING)", retropay.ErrAlreadyDecided), http.StatusBadRequest, "BAD_REQUEST"},
		{"amount mismatch", retropay.ErrAmountMismatch, http.StatusBadRequest, "BAD_REQUEST"},
		{"too many installments", retropay.ErrTooManyInstallments, http.StatusBadRequest, "BAD_REQUEST"},
		{"amount out of range", fmt.Errorf("%w: total 45000000000000.00", retropay.ErrAmountOutOfRange), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"unexpected", fmt.Errorf("failed to update retro pay: %w", context.DeadlineExceeded), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.svc.err = tc.err

			rec := f.do(t, http.MethodPatch, "/api/v1/retro-pay/"+testEntryID+"/approve", f.token(t, user.RoleOwner, testCompanyID), nil)
			assert.Equal(t, tc.wantCode, rec.Code)

			env := decode(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.wantErr, env.Error.Code)
		})
	}

	t.Run("state conflict message names both statuses", func(t *testing.T) {
		f := newRouterFixture(t)
		f.svc.err = fmt.Errorf("%w (current status: PENDING, required: APPROVED)", retropay.ErrNotApproved)

		rec := f.do(t, http.MethodPatch, "/api/v1/retro-pay/"+testEntryID+"/pay", f.token(t, user.RoleOwner, testCompanyID), nil)
		env := decode(t, rec)
		require.NotNil(t, env.Error)
		assert.Contains(t, env.Error.Message, "current status: PENDING")
		assert.Contains(t, env.Error.Message, "required: APPROVED")
	})
}

func TestRetroPayHandler_List(t *testing.T) {
	f := newRouterFixture(t)
	token := f.token(t, user.RoleOwner, testCompanyID)

	rec := f.do(t, http.MethodGet, "/api/v1/retro-pay?status=pending&payment_month=7&payment_year=2024&group_id="+testEntryID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NotNil(t, f.svc.filter.Status)
	assert.Equal(t, retropay.StatusPending, *f.svc.filter.Status)
	require.NotNil(t, f.svc.filter.PaymentMonth)
	assert.Equal(t, 7, *f.svc.filter.PaymentMonth)
	require.NotNil(t, f.svc.filter.GroupID)
	assert.Equal(t, testEntryID, *f.svc.filter.GroupID)
	assert.Nil(t, f.svc.filter.EmployeeID)

	t.Run("malformed query is a validation error", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/retro-pay?payment_month=july&employee_id=42", token, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		env := decode(t, rec)
		require.NotNil(t, env.Error)
		assert.Contains(t, env.Error.Details, "payment_month")
		assert.Contains(t, env.Error.Details, "employee_id")
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/retro-pay?status=rejected", token, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestRetroPayHandler_Reads(t *testing.T) {
	f := newRouterFixture(t)
	token := f.token(t, user.RoleManager, testCompanyID)

	rec := f.do(t, http.MethodGet, "/api/v1/retro-pay/"+testEntryID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testEntryID, f.svc.id)

	rec = f.do(t, http.MethodGet, "/api/v1/retro-pay/employees/0190b0a2-0000-7000-8000-000000000002", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0190b0a2-0000-7000-8000-000000000002", f.svc.id)

	rec = f.do(t, http.MethodGet, "/api/v1/retro-pay/stats?year=2024", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.svc.year)
	assert.Equal(t, 2024, *f.svc.year)

	rec = f.do(t, http.MethodGet, "/api/v1/retro-pay/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, f.svc.year)

	rec = f.do(t, http.MethodGet, "/api/v1/retro-pay/stats?year=last", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/retro-pay/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetroPayHandler_Lifecycle(t *testing.T) {
	f := newRouterFixture(t)
	token := f.token(t, user.RoleOwner, testCompanyID)

	t.Run("cancel with reason", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/v1/retro-pay/"+testEntryID+"/cancel", token, map[string]string{"reason": "duplicate entry"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NotNil(t, f.svc.cancel.Reason)
		assert.Equal(t, "duplicate entry", *f.svc.cancel.Reason)
		assert.Equal(t, testUserID, f.svc.actorID)
	})

	t.Run("cancel without body", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/v1/retro-pay/"+testEntryID+"/cancel", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Nil(t, f.svc.cancel.Reason)
	})

	t.Run("mark paid", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/v1/retro-pay/"+testEntryID+"/pay", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var data retropay.RetroPayEntryResponse
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
		assert.Equal(t, "PAID", data.Status)
	})

	t.Run("approve group", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/v1/retro-pay/groups/"+testEntryID+"/approve", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var data retropay.GroupActionResponse
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
		assert.Equal(t, 4, data.UpdatedCount)
		assert.Equal(t, testEntryID, f.svc.id)
	})

	t.Run("cancel group", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/v1/retro-pay/groups/"+testEntryID+"/cancel", token, map[string]string{"reason": "wrong grade"})
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, f.svc.cancel.Reason)
		assert.Equal(t, "wrong grade", *f.svc.cancel.Reason)
	})

	t.Run("pay period", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/retro-pay/pay-period", token, map[string]int{"payment_month": 7, "payment_year": 2024})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(t, http.MethodPost, "/api/v1/retro-pay/pay-period", token, map[string]int{"payment_month": 13, "payment_year": 2024})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}
