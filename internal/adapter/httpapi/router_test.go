package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebuildfund/rebuildfund-backend/internal/adapter/repository/memory"
	"github.com/rebuildfund/rebuildfund-backend/internal/auth"
	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
	"github.com/rebuildfund/rebuildfund-backend/internal/observability"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/aggregate"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/dashboard"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/investment"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/ledger"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/project"
)

type apiEnv struct {
	router  *gin.Engine
	tokens  *auth.TokenManager
	project *domain.Project
	ownerID uuid.UUID
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	projects := memory.NewProjectRepository(store)
	investments := memory.NewInvestmentRepository(store)

	ownerID := uuid.New()
	p := &domain.Project{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Title:        "Bridge Repair",
		GoalAmount:   decimal.NewFromInt(500),
		RaisedAmount: decimal.Zero,
		Status:       domain.ProjectStatusApproved,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, projects.Create(context.Background(), p))

	collector := observability.NewMetricsCollector()
	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(collector))

	investmentService := investment.NewInvestmentService(
		store, investments, projects,
		ledger.NewWriter(domain.DefaultMinimumInvestment),
		aggregate.NewUpdater(),
		investment.WithHooks(collector),
	)
	tokens := auth.NewTokenManager("http-test-secret", "rebuildfund-test", time.Hour)
	handler := NewHandler(
		investmentService,
		project.NewProjectService(projects, investments, nil, nil),
		dashboard.NewDashboardService(projects, investments),
		tokens,
		nil,
	)

	router := NewRouter(RouterConfig{
		Handler:        handler,
		AuthMiddleware: NewAuthMiddleware(nil, tokens),
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		DevTokens:      true,
	})
	return &apiEnv{router: router, tokens: tokens, project: p, ownerID: ownerID}
}

func (e *apiEnv) token(t *testing.T, id uuid.UUID, role domain.Role) string {
	t.Helper()
	tok, err := e.tokens.Issue(domain.Identity{UserID: id, Role: role})
	require.NoError(t, err)
	return tok
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Error
}

func TestInvest_CreatedThenReplayed(t *testing.T) {
	env := newAPIEnv(t)
	investor := env.token(t, uuid.New(), domain.RoleInvestor)
	path := "/v1/projects/" + env.project.ID.String() + "/investments"

	w := env.do(t, http.MethodPost, path, investor, map[string]any{"amount": "120.50"}, map[string]string{IdempotencyKeyHeader: "checkout-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var first InvestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.False(t, first.Duplicate)
	assert.Equal(t, first.Investment.ID, first.InvestmentID)
	assert.Equal(t, "active", first.Status)
	assert.Equal(t, "120.50", first.ProjectRaisedAmount)
	assert.Equal(t, "120.50", first.Investment.Amount)
	assert.Equal(t, "120.50", first.Project.RaisedAmount)
	assert.Equal(t, "credit_card", first.Investment.PaymentMethod)

	w = env.do(t, http.MethodPost, path, investor, map[string]any{"amount": "120.50", "idempotencyKey": "checkout-1"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var second InvestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Investment.ID, second.Investment.ID)
	assert.Equal(t, first.InvestmentID, second.InvestmentID)
	assert.Equal(t, "120.50", second.ProjectRaisedAmount)
	assert.Equal(t, "120.50", second.Project.RaisedAmount)

	w = env.do(t, http.MethodPost, path, investor, map[string]any{"amount": 99, "idempotencyKey": "checkout-1"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(domain.CodeIdempotencyKeyReused), decodeError(t, w).Code)
}

func TestInvest_ErrorEnvelope(t *testing.T) {
	env := newAPIEnv(t)
	investor := env.token(t, uuid.New(), domain.RoleInvestor)
	owner := env.token(t, env.ownerID, domain.RoleProjectOwner)
	path := "/v1/projects/" + env.project.ID.String() + "/investments"

	tests := []struct {
		name     string
		path     string
		token    string
		body     map[string]any
		headers  map[string]string
		wantCode int
		wantErr  domain.Code
	}{
		{"below minimum", path, investor, map[string]any{"amount": "9.99", "idempotencyKey": "a"}, nil, http.StatusBadRequest, domain.CodeInvalidAmount},
		{"too many decimals", path, investor, map[string]any{"amount": "10.001", "idempotencyKey": "b"}, nil, http.StatusBadRequest, domain.CodeInvalidAmount},
		{"missing key", path, investor, map[string]any{"amount": "50"}, nil, http.StatusBadRequest, domain.CodeInvalidArgument},
		{"header and body differ", path, investor, map[string]any{"amount": "50", "idempotencyKey": "c"}, map[string]string{IdempotencyKeyHeader: "d"}, http.StatusBadRequest, domain.CodeInvalidArgument},
		{"owner may not invest", path, owner, map[string]any{"amount": "50", "idempotencyKey": "e"}, nil, http.StatusForbidden, domain.CodeNotAuthorized},
		{"no token", path, "", map[string]any{"amount": "50", "idempotencyKey": "f"}, nil, http.StatusUnauthorized, domain.CodeNotAuthenticated},
		{"bad token", path, "garbage", map[string]any{"amount": "50", "idempotencyKey": "g"}, nil, http.StatusUnauthorized, domain.CodeNotAuthenticated},
		{"unknown project", "/v1/projects/" + uuid.NewString() + "/investments", investor, map[string]any{"amount": "50", "idempotencyKey": "h"}, nil, http.StatusNotFound, domain.CodeProjectNotFound},
		{"bad project id", "/v1/projects/nope/investments", investor, map[string]any{"amount": "50", "idempotencyKey": "i"}, nil, http.StatusBadRequest, domain.CodeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.token, tt.body, tt.headers)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, string(tt.wantErr), decodeError(t, w).Code)
		})
	}

	w := env.do(t, http.MethodGet, "/v1/projects/"+env.project.ID.String()+"/report", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report ReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "0.00", report.RaisedAmount)
	assert.Equal(t, 0, report.TotalInvestments)
}

func TestInvest_ConcurrentRequestsSumExactly(t *testing.T) {
	env := newAPIEnv(t)
	path := "/v1/projects/" + env.project.ID.String() + "/investments"

	const workers = 20
	var wg sync.WaitGroup
	codes := make([]int, workers)
	tokens := make([]string, workers)
	for i := range tokens {
		tokens[i] = env.token(t, uuid.New(), domain.RoleInvestor)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := bytes.NewBufferString(`{"amount":"10","idempotencyKey":"k"}`)
			req := httptest.NewRequest(http.MethodPost, path, body)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+tokens[i])
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	for _, c := range codes {
		assert.Equal(t, http.StatusCreated, c)
	}
	w := env.do(t, http.MethodGet, "/v1/projects/"+env.project.ID.String(), "", nil, nil)
	var p ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "200.00", p.RaisedAmount)
	assert.Equal(t, "40.00", p.FundingPercentage)
}

func TestProjectLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	ownerID := uuid.New()
	owner := env.token(t, ownerID, domain.RoleProjectOwner)
	admin := env.token(t, uuid.New(), domain.RoleAdmin)
	investorID := uuid.New()
	investor := env.token(t, investorID, domain.RoleInvestor)

	w := env.do(t, http.MethodPost, "/v1/projects", owner, map[string]any{"title": "Well", "goalAmount": "300"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "pending", created.Status)

	invest := "/v1/projects/" + created.ID + "/investments"
	w = env.do(t, http.MethodPost, invest, investor, map[string]any{"amount": "50", "idempotencyKey": "p1"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(domain.CodeProjectNotFundable), decodeError(t, w).Code)

	w = env.do(t, http.MethodPost, "/v1/projects/"+created.ID+"/review", owner, map[string]any{"approve": true}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/v1/projects/"+created.ID+"/review", admin, map[string]any{"approve": true}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, invest, investor, map[string]any{"amount": "300", "idempotencyKey": "p2"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res InvestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "completed", res.Project.Status)
	assert.Equal(t, "100.00", res.Project.FundingPercentage)

	w = env.do(t, http.MethodDelete, "/v1/projects/"+created.ID, owner, nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(domain.CodeProjectHasInvestments), decodeError(t, w).Code)

	w = env.do(t, http.MethodGet, "/v1/projects/"+created.ID+"/investments", owner, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), res.Investment.ID)

	w = env.do(t, http.MethodPost, "/v1/investments/"+res.Investment.ID+"/transition", admin, map[string]any{"status": "cancelled"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"raisedAmount":"0.00"`)

	w = env.do(t, http.MethodGet, "/v1/me/portfolio", investor, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var portfolio PortfolioResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &portfolio))
	assert.Equal(t, "0.00", portfolio.TotalInvested)
	assert.Equal(t, 1, portfolio.Investments)

	w = env.do(t, http.MethodGet, "/v1/me/summary", owner, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary OwnerSummaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Projects)
	assert.Equal(t, "300.00", summary.TotalGoal)
}

func TestMiscRoutes(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/v1/dev/token", "", map[string]any{"role": "investor"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	id, err := env.tokens.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleInvestor, id.Role)

	w = env.do(t, http.MethodGet, "/v1/me/investments", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/v1/projects?status=approved", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), env.project.ID.String())

	w = env.do(t, http.MethodGet, "/v1/projects?status=bogus", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	investor := env.token(t, uuid.New(), domain.RoleInvestor)
	env.do(t, http.MethodPost, "/v1/projects/"+env.project.ID.String()+"/investments", investor, map[string]any{"amount": "10", "idempotencyKey": "m"}, nil)
	w = env.do(t, http.MethodGet, "/metrics", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rebuildfund_invest_duration_seconds")
}
