package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rebuildfund/rebuildfund-backend/internal/auth"
	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
	"github.com/rebuildfund/rebuildfund-backend/internal/platform/logger"
)

// TokenVerifier turns a session token into an identity
type TokenVerifier interface {
	Verify(token string) (*domain.Identity, error)
}

// AuthInterceptor returns a gRPC unary server interceptor that validates
// the bearer token from request metadata and stores the caller's identity
// in the context. Methods listed in public may be called without a token;
// a token that is present is still verified.
func AuthInterceptor(verifier TokenVerifier, public ...string) grpc.UnaryServerInterceptor {
	open := make(map[string]struct{}, len(public))
	for _, m := range public {
		open[m] = struct{}{}
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		_, isPublic := open[info.FullMethod]

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			if isPublic {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			if isPublic {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		identity, err := verifier.Verify(auth.BearerToken(authHeaders[0]))
		if err != nil {
			if domain.CodeOf(err) == domain.CodeNotAuthorized {
				return nil, mapError(err)
			}
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		return handler(domain.WithIdentity(ctx, identity), req)
	}
}

// LoggingInterceptor logs each call with its duration and status code
func LoggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		kv := []interface{}{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
		switch code {
		case codes.OK:
			log.Debug("grpc call", kv...)
		case codes.Internal, codes.Unavailable, codes.Unknown:
			log.Error("grpc call failed", append(kv, "error", err)...)
		default:
			log.Info("grpc call rejected", append(kv, "error", err)...)
		}
		return resp, err
	}
}
