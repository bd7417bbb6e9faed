package middleware

import (
	"context"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/metrics"
)

type metricsInterceptor struct {
	m *metrics.Metrics
}

// MetricsInterceptor records the count and latency of every handled call.
func MetricsInterceptor(m *metrics.Metrics) connect.Interceptor {
	return metricsInterceptor{m: m}
}

func code(err error) string {
	if err == nil {
		return "ok"
	}
	return connect.CodeOf(err).String()
}

func (i metricsInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		if !req.Spec().IsClient {
			i.m.ObserveRPC(req.Spec().Procedure, code(err), time.Since(start))
		}
		return resp, err
	}
}

func (i metricsInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i metricsInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		err := next(ctx, conn)
		i.m.ObserveRPC(conn.Spec().Procedure, code(err), time.Since(start))
		return err
	}
}
