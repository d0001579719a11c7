package grpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ServiceTokenHeader carries the shared secret between the dashboard and the
// API.
const ServiceTokenHeader = "x-service-token"

// serviceGuard admits calls whose metadata carries the configured service
// token. Health Check is unary and Watch is streaming, so both paths check.
type serviceGuard struct {
	token []byte
}

func newServiceGuard(expectedToken string) (*serviceGuard, error) {
	expectedToken = strings.TrimSpace(expectedToken)
	if expectedToken == "" {
		return nil, errors.New("service auth token required")
	}
	return &serviceGuard{token: []byte(expectedToken)}, nil
}

func (g *serviceGuard) check(ctx context.Context) error {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(ServiceTokenHeader)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return status.Error(codes.Unauthenticated, "missing_service_token")
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(values[0])), g.token) != 1 {
		return status.Error(codes.PermissionDenied, "invalid_service_token")
	}
	return nil
}

func (g *serviceGuard) unary(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if err := g.check(ctx); err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

func (g *serviceGuard) stream(srv interface{}, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if err := g.check(ss.Context()); err != nil {
		return err
	}
	return handler(srv, ss)
}
