package clog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

type slogConnectInterceptor struct{}

// NewSlogConnectInterceptor logs one line per handled unary RPC with its
// code and duration. The task service has no streaming procedures, so
// streams and client side calls pass through untouched.
func NewSlogConnectInterceptor() connect.Interceptor {
	return slogConnectInterceptor{}
}

func (slogConnectInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		start := time.Now()
		ctx = ContextWithSlog(ctx)
		AddAttributes(ctx, map[string]any{
			"method":    req.HTTPMethod(),
			"procedure": req.Spec().Procedure,
		})
		resp, err := next(ctx, req)
		logRPC(ctx, start, err)
		return resp, err
	}
}

func (slogConnectInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (slogConnectInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

func logRPC(ctx context.Context, start time.Time, err error) {
	code := "ok"
	var connectErr *connect.Error
	if err != nil {
		if !errors.As(err, &connectErr) {
			connectErr = connect.NewError(connect.CodeUnknown, err)
		}
		code = connectErr.Code().String()
	}
	AddAttributes(ctx, map[string]any{
		"code":     code,
		"duration": time.Since(start),
	})
	if connectErr == nil {
		slog.InfoContext(ctx, "rpc finished")
		return
	}
	slog.Log(ctx, ConnectCodeToLevel(connectErr.Code()).Slog(), connectErr.Message())
}
