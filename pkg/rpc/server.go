package rpc

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
)

func NewServer(log *slog.Logger, extra ...grpc.UnaryServerInterceptor) *grpc.Server {
	chain := append([]grpc.UnaryServerInterceptor{ServerTrace()}, extra...)
	chain = append(chain, Recover(log))
	return grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))
}

// Serve listens on addr until ctx is done, then stops gracefully.
func Serve(ctx context.Context, log *slog.Logger, gs *grpc.Server, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()
	log.Info("grpc listening", "addr", addr)
	return gs.Serve(lis)
}
