package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the name the API reports under in the health service.
const HealthService = "thesisboard.api"

// NewServer returns a gRPC server exposing the standard health service behind
// the service token. The API starts NOT_SERVING until its database answers.
func NewServer(serviceToken string) (*grpc.Server, *health.Server, error) {
	guard, err := newServiceGuard(serviceToken)
	if err != nil {
		return nil, nil, err
	}
	server := grpc.NewServer(
		grpc.UnaryInterceptor(guard.unary),
		grpc.StreamInterceptor(guard.stream),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer, nil
}
