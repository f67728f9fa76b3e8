package rpc

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
)

const internalMessage = "internal error"

// Recover turns a panic or a stray handler error into an INTERNAL_ERROR
// envelope so that every request gets an answer.
func Recover(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				log.Error("rpc handler panicked", "method", info.FullMethod, "panic", p, "stack", string(debug.Stack()))
				resp, err = result.Fail[any](result.InternalError, internalMessage), nil
			}
		}()
		resp, err = handler(ctx, req)
		if err != nil {
			log.Error("rpc handler failed", "method", info.FullMethod, "err", err)
			return result.Fail[any](result.InternalError, internalMessage), nil
		}
		return resp, nil
	}
}

type outcome interface {
	Status() (bool, result.ErrorCode)
}

// Observe counts answered requests by method and error code.
func Observe(requests *prometheus.CounterVec) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		code := "OK"
		if o, ok := resp.(outcome); ok {
			if success, c := o.Status(); !success {
				code = string(c)
			}
		}
		requests.WithLabelValues(info.FullMethod, code).Inc()
		return resp, err
	}
}

type metadataCarrier metadata.MD

func (c metadataCarrier) Get(key string) string {
	if v := metadata.MD(c).Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c metadataCarrier) Set(key, value string) { metadata.MD(c).Set(key, value) }

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

func ServerTrace() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer("rpc-server")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		ctx = otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))
		ctx, span := tracer.Start(ctx, info.FullMethod, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		return handler(ctx, req)
	}
}

func ClientTrace() grpc.UnaryClientInterceptor {
	tracer := otel.Tracer("rpc-client")
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, span := tracer.Start(ctx, method, trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		md, ok := metadata.FromOutgoingContext(ctx)
		if ok {
			md = md.Copy()
		} else {
			md = metadata.MD{}
		}
		otel.GetTextMapPropagator().Inject(ctx, metadataCarrier(md))
		ctx = metadata.NewOutgoingContext(ctx, md)

		err := invoker(ctx, method, req, reply, cc, opts...)
		if err != nil {
			span.RecordError(err)
		}
		return err
	}
}
