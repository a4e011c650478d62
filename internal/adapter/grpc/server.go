package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
	"github.com/rebuildfund/rebuildfund-backend/internal/platform/logger"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/investment"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/project"
)

// ErrorDomain is reported in the ErrorInfo detail of every mapped error
const ErrorDomain = "rebuildfund.v1"

// Server implements the InvestmentService gRPC server
type Server struct {
	InvestmentService *investment.InvestmentService
	ProjectService    *project.ProjectService
}

// NewServer creates a new gRPC server instance
func NewServer(
	investmentService *investment.InvestmentService,
	projectService *project.ProjectService,
) *Server {
	return &Server{
		InvestmentService: investmentService,
		ProjectService:    projectService,
	}
}

// PublicMethods may be called without a token
var PublicMethods = []string{
	InvestmentService_GetProject_FullMethodName,
	InvestmentService_ProjectReport_FullMethodName,
	healthpb.Health_Check_FullMethodName,
}

// NewGRPCServer builds a grpc.Server with auth, logging, health and reflection
func NewGRPCServer(srv *Server, verifier TokenVerifier, log *logger.Logger) *grpc.Server {
	if log == nil {
		log = logger.NewNop()
	}
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		LoggingInterceptor(log),
		AuthInterceptor(verifier, PublicMethods...),
	))
	RegisterInvestmentServiceServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(InvestmentService_ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return s
}

// Invest handles the Invest RPC
func (s *Server) Invest(ctx context.Context, req *InvestRequest) (*InvestResponse, error) {
	projectID, err := uuid.Parse(strings.TrimSpace(req.ProjectID))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid project_id format: %v", err)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, mapError(domain.NewError(domain.CodeInvalidAmount, "grpc.Invest", "amount must be a decimal number"))
	}

	res, err := s.InvestmentService.Invest(ctx, domain.IdentityFrom(ctx), investment.InvestInput{
		ProjectID:      projectID,
		Amount:         amount,
		IdempotencyKey: req.IdempotencyKey,
		TransactionRef: req.TransactionRef,
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &InvestResponse{
		InvestmentID:        res.Investment.ID.String(),
		Status:              string(res.Investment.Status),
		ProjectRaisedAmount: res.ProjectRaisedAmount().StringFixed(domain.AmountScale),
		FundingPercentage:   res.Project.FundingPercentage().StringFixed(2),
		ProjectStatus:       string(res.Project.Status),
		Duplicate:           res.Duplicate,
		CreatedAt:           res.Investment.CreatedAt,
	}, nil
}

// GetProject handles the GetProject RPC
func (s *Server) GetProject(ctx context.Context, req *GetProjectRequest) (*GetProjectResponse, error) {
	projectID, err := uuid.Parse(strings.TrimSpace(req.ProjectID))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid project_id format: %v", err)
	}

	p, err := s.ProjectService.Get(ctx, projectID)
	if err != nil {
		return nil, mapError(err)
	}
	return &GetProjectResponse{Project: domainProjectToMessage(p)}, nil
}

// ProjectReport handles the ProjectReport RPC
func (s *Server) ProjectReport(ctx context.Context, req *ProjectReportRequest) (*ProjectReportResponse, error) {
	projectID, err := uuid.Parse(strings.TrimSpace(req.ProjectID))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid project_id format: %v", err)
	}

	r, err := s.ProjectService.Report(ctx, projectID)
	if err != nil {
		return nil, mapError(err)
	}
	return &ProjectReportResponse{
		ProjectID:         r.ProjectID.String(),
		Status:            string(r.Status),
		GoalAmount:        r.GoalAmount.StringFixed(domain.AmountScale),
		RaisedAmount:      r.RaisedAmount.StringFixed(domain.AmountScale),
		FundingPercentage: r.FundingPercentage.StringFixed(2),
		InvestorCount:     int32(r.InvestorCount),
		ActiveInvestments: int32(r.ActiveInvestments),
		TotalInvestments:  int32(r.TotalInvestments),
	}, nil
}

// ListMyInvestments handles the ListMyInvestments RPC
func (s *Server) ListMyInvestments(ctx context.Context, req *ListMyInvestmentsRequest) (*ListMyInvestmentsResponse, error) {
	investments, err := s.InvestmentService.ListMine(ctx, domain.IdentityFrom(ctx), req.Status)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]*Investment, 0, len(investments))
	for _, inv := range investments {
		out = append(out, domainInvestmentToMessage(inv))
	}
	return &ListMyInvestmentsResponse{Investments: out}, nil
}

func domainProjectToMessage(p *domain.Project) *Project {
	return &Project{
		ID:                p.ID.String(),
		OwnerID:           p.OwnerID.String(),
		Title:             p.Title,
		Description:       p.Description,
		Location:          p.Location,
		ImageURL:          p.ImageURL,
		GoalAmount:        p.GoalAmount.StringFixed(domain.AmountScale),
		RaisedAmount:      p.RaisedAmount.StringFixed(domain.AmountScale),
		FundingPercentage: p.FundingPercentage().StringFixed(2),
		Status:            string(p.Status),
		CreatedAt:         p.CreatedAt,
	}
}

func domainInvestmentToMessage(inv *domain.Investment) *Investment {
	return &Investment{
		ID:             inv.ID.String(),
		ProjectID:      inv.ProjectID.String(),
		Amount:         inv.Amount.StringFixed(domain.AmountScale),
		Status:         string(inv.Status),
		TransactionRef: inv.TransactionRef,
		PaymentMethod:  inv.PaymentMethod,
		CreatedAt:      inv.CreatedAt,
	}
}

// grpcCode maps an error code onto a gRPC status code
func grpcCode(code domain.Code) codes.Code {
	switch code {
	case domain.CodeInvalidAmount, domain.CodeInvalidArgument:
		return codes.InvalidArgument
	case domain.CodeNotAuthenticated:
		return codes.Unauthenticated
	case domain.CodeNotAuthorized:
		return codes.PermissionDenied
	case domain.CodeProjectNotFound, domain.CodeInvestmentNotFound:
		return codes.NotFound
	case domain.CodeProjectNotFundable, domain.CodeInvalidTransition, domain.CodeProjectHasInvestments:
		return codes.FailedPrecondition
	case domain.CodeIdempotencyKeyReused:
		return codes.AlreadyExists
	case domain.CodeConcurrentUpdateConflict:
		return codes.Aborted
	case domain.CodeInvestmentFailed:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// mapError converts domain errors to gRPC status errors carrying an
// ErrorInfo detail whose Reason is the error code
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, "request cancelled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}

	code := domain.CodeOf(err)
	msg := "internal error"
	var de *domain.Error
	if code != domain.CodeInternal && errors.As(err, &de) {
		msg = de.Message
	}

	st := status.New(grpcCode(code), msg)
	withInfo, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(code),
		Domain: ErrorDomain,
	})
	if detailErr != nil {
		return st.Err()
	}
	return withInfo.Err()
}

// ErrorCode extracts the error code from a status returned by this service
func ErrorCode(err error) domain.Code {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return domain.Code(info.GetReason())
		}
	}
	return ""
}
