package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
)

// ErrUnavailable marks a call that never produced an envelope: deadline,
// connection failure or cancellation.
var ErrUnavailable = errors.New("dependency unavailable")

func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
		grpc.WithChainUnaryInterceptor(ClientTrace()),
	}, opts...)
	return grpc.NewClient(addr, opts...)
}

// Invoke performs one unary call and returns the raw envelope.
func Invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req *Req) (result.Result[Resp], error) {
	var out result.Result[Resp]
	if err := cc.Invoke(ctx, method, req, &out, grpc.CallContentSubtype(CodecName)); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrUnavailable, method, err)
	}
	return out, nil
}

// Call invokes method under timeout and unwraps the envelope. Business
// failures come back as *result.Error; everything else wraps ErrUnavailable.
func Call[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, timeout time.Duration, req *Req) (Resp, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := Invoke[Req, Resp](ctx, cc, method, req)
	if err != nil {
		var zero Resp
		return zero, err
	}
	if err := out.Err(); err != nil {
		var zero Resp
		return zero, err
	}
	return out.Data, nil
}
