package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rebuildfund/rebuildfund-backend/internal/auth"
	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

func TestAuthInterceptor(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", "rebuildfund-test", time.Hour)
	investorID := uuid.New()
	validToken, err := tokens.Issue(domain.Identity{UserID: investorID, Role: domain.RoleInvestor})
	require.NoError(t, err)

	const publicMethod = "/test.Service/Public"
	interceptor := AuthInterceptor(tokens, publicMethod)

	tests := []struct {
		name           string
		ctx            context.Context
		method         string
		handlerCalled  bool
		wantIdentity   bool
		expectedCode   codes.Code
		expectedErrMsg string
	}{
		{
			name: "Valid Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", "Bearer "+validToken),
			),
			method:        "/test.Service/Method",
			handlerCalled: true,
			wantIdentity:  true,
			expectedCode:  codes.OK,
		},
		{
			name: "Bare Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", validToken),
			),
			method:        "/test.Service/Method",
			handlerCalled: true,
			wantIdentity:  true,
			expectedCode:  codes.OK,
		},
		{
			name: "Invalid Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", "Bearer wrong-token"),
			),
			method:         "/test.Service/Method",
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "invalid token",
		},
		{
			name:           "Missing Token",
			ctx:            context.Background(),
			method:         "/test.Service/Method",
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "missing metadata",
		},
		{
			name: "Missing Authorization Header",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("other-header", "value"),
			),
			method:         "/test.Service/Method",
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "missing authorization header",
		},
		{
			name:          "Public Method Without Token",
			ctx:           context.Background(),
			method:        publicMethod,
			handlerCalled: true,
			expectedCode:  codes.OK,
		},
		{
			name: "Public Method With Invalid Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", "Bearer wrong-token"),
			),
			method:         publicMethod,
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			var seen *domain.Identity
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				handlerCalled = true
				seen = domain.IdentityFrom(ctx)
				return "success", nil
			}

			info := &grpc.UnaryServerInfo{
				FullMethod: tt.method,
			}

			resp, err := interceptor(tt.ctx, "test-request", info, handler)

			assert.Equal(t, tt.handlerCalled, handlerCalled, "handler called status mismatch")

			if tt.expectedCode == codes.OK {
				assert.NoError(t, err)
				assert.Equal(t, "success", resp)
				if tt.wantIdentity {
					require.NotNil(t, seen)
					assert.Equal(t, investorID, seen.UserID)
					assert.Equal(t, domain.RoleInvestor, seen.Role)
				} else {
					assert.Nil(t, seen)
				}
			} else {
				assert.Error(t, err)
				st, ok := status.FromError(err)
				assert.True(t, ok, "error should be a gRPC status")
				assert.Equal(t, tt.expectedCode, st.Code())
				assert.Contains(t, st.Message(), tt.expectedErrMsg)
			}
		})
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode codes.Code
		wantMsg  string
		wantInfo domain.Code
	}{
		{"invalid amount", domain.NewError(domain.CodeInvalidAmount, "op", "amount must be at least 100"), codes.InvalidArgument, "amount must be at least 100", domain.CodeInvalidAmount},
		{"not authenticated", domain.NewError(domain.CodeNotAuthenticated, "op", "authentication required"), codes.Unauthenticated, "authentication required", domain.CodeNotAuthenticated},
		{"not authorized", domain.NewError(domain.CodeNotAuthorized, "op", "nope"), codes.PermissionDenied, "nope", domain.CodeNotAuthorized},
		{"project not found", domain.NewError(domain.CodeProjectNotFound, "op", "project not found"), codes.NotFound, "project not found", domain.CodeProjectNotFound},
		{"not fundable", domain.NewError(domain.CodeProjectNotFundable, "op", "closed"), codes.FailedPrecondition, "closed", domain.CodeProjectNotFundable},
		{"key reused", domain.NewError(domain.CodeIdempotencyKeyReused, "op", "reused"), codes.AlreadyExists, "reused", domain.CodeIdempotencyKeyReused},
		{"investment failed", domain.NewError(domain.CodeInvestmentFailed, "op", "could not be committed"), codes.Unavailable, "could not be committed", domain.CodeInvestmentFailed},
		{"plain error hides details", assert.AnError, codes.Internal, "internal error", domain.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, st.Code())
			assert.Equal(t, tt.wantMsg, st.Message())
			assert.Equal(t, tt.wantInfo, ErrorCode(err))
		})
	}

	assert.Nil(t, mapError(nil))
	assert.Equal(t, codes.Canceled, status.Code(mapError(context.Canceled)))
}
