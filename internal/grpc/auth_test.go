package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func withToken(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(ServiceTokenHeader, token))
}

func TestServiceGuardUnary(t *testing.T) {
	if _, err := newServiceGuard("  "); err == nil {
		t.Fatalf("expected error for empty token")
	}

	guard, err := newServiceGuard("secret")
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	cases := []struct {
		name string
		ctx  context.Context
		code codes.Code
	}{
		{"missing", context.Background(), codes.Unauthenticated},
		{"blank", withToken("  "), codes.Unauthenticated},
		{"wrong", withToken("nope"), codes.PermissionDenied},
		{"valid", withToken(" secret "), codes.OK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := guard.unary(tc.ctx, nil, info, handler)
			if got := status.Code(err); got != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, got)
			}
			if tc.code == codes.OK && resp != "ok" {
				t.Fatalf("expected handler response, got %v", resp)
			}
		})
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s fakeStream) Context() context.Context { return s.ctx }

func TestServiceGuardStream(t *testing.T) {
	guard, err := newServiceGuard("secret")
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	called := false
	handler := func(srv interface{}, ss grpc.ServerStream) error {
		called = true
		return nil
	}
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch", IsServerStream: true}

	err = guard.stream(nil, fakeStream{ctx: withToken("nope")}, info, handler)
	if status.Code(err) != codes.PermissionDenied || called {
		t.Fatalf("expected rejected stream, got %v (called=%v)", err, called)
	}
	if err := guard.stream(nil, fakeStream{ctx: withToken("secret")}, info, handler); err != nil || !called {
		t.Fatalf("expected admitted stream, got %v (called=%v)", err, called)
	}
}
