//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	grpcadapter "github.com/rebuildfund/rebuildfund-backend/internal/adapter/grpc"
	"github.com/rebuildfund/rebuildfund-backend/internal/adapter/repository/postgres"
	"github.com/rebuildfund/rebuildfund-backend/internal/auth"
	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

var (
	db         *postgres.DB
	grpcClient grpcadapter.InvestmentServiceClient
	grpcConn   *grpc.ClientConn
	tokens     *auth.TokenManager
)

// TestMain connects to the database and to a running server
func TestMain(m *testing.M) {
	ctx := context.Background()

	// 1. Connect to Database
	var err error
	db, err = postgres.NewDB(ctx, getDBConnectionString(), postgres.PoolOptions{MaxOpenConns: 5})
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	if err := db.Migrate(ctx); err != nil {
		panic(fmt.Sprintf("Failed to apply schema: %v", err))
	}

	// 2. Connect to gRPC Server
	grpcConn, err = grpc.NewClient(getGRPCAddress(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to gRPC server: %v", err))
	}
	grpcClient = grpcadapter.NewInvestmentServiceClient(grpcConn)

	// 3. Tokens signed with the server's secret
	secret := os.Getenv("REBUILDFUND_AUTH_JWT_SECRET")
	if secret == "" {
		secret = "dev-secret"
	}
	tokens = auth.NewTokenManager(secret, "rebuildfund", time.Hour)

	code := m.Run()
	grpcConn.Close()
	db.Close()
	os.Exit(code)
}

// createApprovedProject inserts a fresh fundable project
func createApprovedProject(t *testing.T, goal int64) *domain.Project {
	t.Helper()
	now := time.Now().UTC()
	p := &domain.Project{
		ID:           uuid.New(),
		OwnerID:      uuid.New(),
		Title:        "E2E " + now.Format(time.RFC3339Nano),
		GoalAmount:   decimal.NewFromInt(goal),
		RaisedAmount: decimal.Zero,
		Status:       domain.ProjectStatusApproved,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, postgres.NewProjectRepository(db).Create(context.Background(), p))
	return p
}

// getAuthContext returns a context with a fresh investor token
func getAuthContext(t *testing.T) context.Context {
	t.Helper()
	token, err := tokens.Issue(domain.Identity{UserID: uuid.New(), Role: domain.RoleInvestor})
	require.NoError(t, err)
	return metadata.NewOutgoingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
}

func raisedInDB(t *testing.T, projectID uuid.UUID) (decimal.Decimal, int) {
	t.Helper()
	var raised string
	var rows int
	err := db.QueryRowContext(context.Background(),
		`SELECT p.raised_amount::text, (SELECT COUNT(*) FROM investments i WHERE i.project_id = p.id)
		 FROM projects p WHERE p.id = $1`, projectID).Scan(&raised, &rows)
	require.NoError(t, err)
	d, err := decimal.NewFromString(raised)
	require.NoError(t, err)
	return d, rows
}

// getDBConnectionString returns the database connection string from environment or defaults
func getDBConnectionString() string {
	connStr := os.Getenv("DB_CONN_STR")
	if connStr != "" {
		return connStr
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("DB_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("DB_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("DB_NAME")
	if dbname == "" {
		dbname = "rebuildfund"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

// getGRPCAddress returns the gRPC server address from environment or defaults
func getGRPCAddress() string {
	addr := os.Getenv("GRPC_ADDRESS")
	if addr == "" {
		addr = "localhost:8080"
	}
	return addr
}

// TestEndToEndFlow: invest, replay, and check the ledger and aggregate agree
func TestEndToEndFlow(t *testing.T) {
	ctx := getAuthContext(t)
	project := createApprovedProject(t, 1000)

	// Step A: first submission creates one record
	req := &grpcadapter.InvestRequest{
		ProjectID:      project.ID.String(),
		Amount:         "300.00",
		IdempotencyKey: "e2e-" + uuid.NewString(),
	}
	first, err := grpcClient.Invest(ctx, req)
	require.NoError(t, err, "Invest should succeed")
	assert.False(t, first.Duplicate)
	assert.Equal(t, "300.00", first.ProjectRaisedAmount)

	// Step B: replay returns the same record and credits nothing
	second, err := grpcClient.Invest(ctx, req)
	require.NoError(t, err, "Replay should succeed")
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.InvestmentID, second.InvestmentID)

	raised, rows := raisedInDB(t, project.ID)
	assert.True(t, raised.Equal(decimal.NewFromInt(300)), "raised_amount should be 300, got %s", raised)
	assert.Equal(t, 1, rows, "exactly one investment row")

	// Step C: a rejected request leaves no trace
	_, err = grpcClient.Invest(ctx, &grpcadapter.InvestRequest{
		ProjectID:      project.ID.String(),
		Amount:         "5",
		IdempotencyKey: "e2e-" + uuid.NewString(),
	})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, domain.CodeInvalidAmount, grpcadapter.ErrorCode(err))

	_, rows = raisedInDB(t, project.ID)
	assert.Equal(t, 1, rows)

	// Step D: report agrees with the database
	report, err := grpcClient.ProjectReport(context.Background(), &grpcadapter.ProjectReportRequest{ProjectID: project.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "300.00", report.RaisedAmount)
	assert.Equal(t, "30.00", report.FundingPercentage)
}

// TestConcurrentInvestors: the aggregate equals the sum of every committed record
func TestConcurrentInvestors(t *testing.T) {
	project := createApprovedProject(t, 100000)

	const investors = 25
	ctxs := make([]context.Context, investors)
	for i := range ctxs {
		ctxs[i] = getAuthContext(t)
	}

	var wg sync.WaitGroup
	errs := make([]error, investors)
	for i := 0; i < investors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = grpcClient.Invest(ctxs[i], &grpcadapter.InvestRequest{
				ProjectID:      project.ID.String(),
				Amount:         "40.00",
				IdempotencyKey: "burst",
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	raised, rows := raisedInDB(t, project.ID)
	assert.Equal(t, investors, rows)
	assert.True(t, raised.Equal(decimal.NewFromInt(40*investors)), "raised_amount should be %d, got %s", 40*investors, raised)
}
