// Package service exposes the engine over Connect RPC with a JSON codec.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/auth"
	"github.com/mmynk/gatherly/internal/middleware"
)

const packagePrefix = "/gatherly.v1."

// JSONCodec encodes messages as plain JSON. It replaces connect's built-in
// protobuf JSON codec so handlers can use ordinary Go structs.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// Procedure returns the full procedure path of service.method.
func Procedure(service, method string) string {
	return packagePrefix + service + "/" + method
}

// routes collects the handlers of one service under its path prefix.
type routes struct {
	service string
	mux     *http.ServeMux
	opts    []connect.HandlerOption
}

func newRoutes(service string, opts []connect.HandlerOption) *routes {
	return &routes{
		service: service,
		mux:     http.NewServeMux(),
		opts:    append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...),
	}
}

func (r *routes) handler() (string, http.Handler) {
	return packagePrefix + r.service + "/", r.mux
}

func unary[Req, Res any](r *routes, method string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error)) {
	procedure := Procedure(r.service, method)
	r.mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, r.opts...))
}

func serverStream[Req, Res any](r *routes, method string, fn func(context.Context, *connect.Request[Req], *connect.ServerStream[Res]) error) {
	procedure := Procedure(r.service, method)
	r.mux.Handle(procedure, connect.NewServerStreamHandler(procedure, fn, r.opts...))
}

// callerID returns the authenticated user or an Unauthenticated error.
func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return userID, nil
}

// fail logs a failed call and converts err to a connect error.
func fail(method string, err error, attrs ...any) error {
	slog.Error(method+" failed", append(attrs, "error", err)...)
	return middleware.ConnectError(err)
}

// Empty is the request or response of calls that carry no fields.
type Empty struct{}
