package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
)

// Service is a hand-built gRPC service descriptor whose unary methods take a
// JSON request and always answer with a result envelope.
type Service struct {
	desc grpc.ServiceDesc
}

func NewService(name string) *Service {
	return &Service{desc: grpc.ServiceDesc{
		ServiceName: name,
		HandlerType: (*any)(nil),
	}}
}

func (s *Service) Name() string { return s.desc.ServiceName }

func (s *Service) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&s.desc, struct{}{})
}

// Method returns the full gRPC method name for service/method.
func Method(service, method string) string {
	return "/" + service + "/" + method
}

// Handle adds a unary method to s. A request that cannot be decoded is
// answered with INVALID_REQUEST instead of a transport error.
func Handle[Req, Resp any](s *Service, method string, fn func(context.Context, *Req) result.Result[Resp]) {
	fullMethod := Method(s.desc.ServiceName, method)
	s.desc.Methods = append(s.desc.Methods, grpc.MethodDesc{
		MethodName: method,
		Handler: func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return result.Fail[Resp](result.InvalidRequest, "malformed request: "+err.Error()), nil
			}
			if interceptor == nil {
				return fn(ctx, req), nil
			}
			info := &grpc.UnaryServerInfo{FullMethod: fullMethod}
			return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
				return fn(ctx, r.(*Req)), nil
			})
		},
	})
}
