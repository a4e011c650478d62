package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	InvestmentService_ServiceName                      = "rebuildfund.v1.InvestmentService"
	InvestmentService_Invest_FullMethodName            = "/rebuildfund.v1.InvestmentService/Invest"
	InvestmentService_GetProject_FullMethodName        = "/rebuildfund.v1.InvestmentService/GetProject"
	InvestmentService_ProjectReport_FullMethodName     = "/rebuildfund.v1.InvestmentService/ProjectReport"
	InvestmentService_ListMyInvestments_FullMethodName = "/rebuildfund.v1.InvestmentService/ListMyInvestments"
)

// InvestmentServiceServer is the server API for the investment service
type InvestmentServiceServer interface {
	Invest(context.Context, *InvestRequest) (*InvestResponse, error)
	GetProject(context.Context, *GetProjectRequest) (*GetProjectResponse, error)
	ProjectReport(context.Context, *ProjectReportRequest) (*ProjectReportResponse, error)
	ListMyInvestments(context.Context, *ListMyInvestmentsRequest) (*ListMyInvestmentsResponse, error)
}

// RegisterInvestmentServiceServer registers srv on s
func RegisterInvestmentServiceServer(s grpc.ServiceRegistrar, srv InvestmentServiceServer) {
	s.RegisterService(&InvestmentService_ServiceDesc, srv)
}

func _InvestmentService_Invest_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InvestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InvestmentServiceServer).Invest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InvestmentService_Invest_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InvestmentServiceServer).Invest(ctx, req.(*InvestRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _InvestmentService_GetProject_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetProjectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InvestmentServiceServer).GetProject(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InvestmentService_GetProject_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InvestmentServiceServer).GetProject(ctx, req.(*GetProjectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _InvestmentService_ProjectReport_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ProjectReportRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InvestmentServiceServer).ProjectReport(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InvestmentService_ProjectReport_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InvestmentServiceServer).ProjectReport(ctx, req.(*ProjectReportRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _InvestmentService_ListMyInvestments_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListMyInvestmentsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InvestmentServiceServer).ListMyInvestments(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InvestmentService_ListMyInvestments_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InvestmentServiceServer).ListMyInvestments(ctx, req.(*ListMyInvestmentsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// InvestmentService_ServiceDesc describes the investment service. Messages
// are plain Go structs carried by the json codec.
var InvestmentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: InvestmentService_ServiceName,
	HandlerType: (*InvestmentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invest", Handler: _InvestmentService_Invest_Handler},
		{MethodName: "GetProject", Handler: _InvestmentService_GetProject_Handler},
		{MethodName: "ProjectReport", Handler: _InvestmentService_ProjectReport_Handler},
		{MethodName: "ListMyInvestments", Handler: _InvestmentService_ListMyInvestments_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rebuildfund/v1/investment_service",
}

// InvestmentServiceClient is the client API for the investment service
type InvestmentServiceClient interface {
	Invest(ctx context.Context, in *InvestRequest, opts ...grpc.CallOption) (*InvestResponse, error)
	GetProject(ctx context.Context, in *GetProjectRequest, opts ...grpc.CallOption) (*GetProjectResponse, error)
	ProjectReport(ctx context.Context, in *ProjectReportRequest, opts ...grpc.CallOption) (*ProjectReportResponse, error)
	ListMyInvestments(ctx context.Context, in *ListMyInvestmentsRequest, opts ...grpc.CallOption) (*ListMyInvestmentsResponse, error)
}

type investmentServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewInvestmentServiceClient creates a client that always selects the json codec
func NewInvestmentServiceClient(cc grpc.ClientConnInterface) InvestmentServiceClient {
	return &investmentServiceClient{cc}
}

func (c *investmentServiceClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *investmentServiceClient) Invest(ctx context.Context, in *InvestRequest, opts ...grpc.CallOption) (*InvestResponse, error) {
	out := new(InvestResponse)
	if err := c.invoke(ctx, InvestmentService_Invest_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *investmentServiceClient) GetProject(ctx context.Context, in *GetProjectRequest, opts ...grpc.CallOption) (*GetProjectResponse, error) {
	out := new(GetProjectResponse)
	if err := c.invoke(ctx, InvestmentService_GetProject_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *investmentServiceClient) ProjectReport(ctx context.Context, in *ProjectReportRequest, opts ...grpc.CallOption) (*ProjectReportResponse, error) {
	out := new(ProjectReportResponse)
	if err := c.invoke(ctx, InvestmentService_ProjectReport_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *investmentServiceClient) ListMyInvestments(ctx context.Context, in *ListMyInvestmentsRequest, opts ...grpc.CallOption) (*ListMyInvestmentsResponse, error) {
	out := new(ListMyInvestmentsResponse)
	if err := c.invoke(ctx, InvestmentService_ListMyInvestments_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
