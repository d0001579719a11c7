package clients

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

const serviceTokenHeader = "x-service-token"

// HealthProbe asks the API's gRPC health service whether it is serving.
type HealthProbe struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	token   string
	service string
}

func NewHealthProbe(ctx context.Context, addr, serviceToken, service string, timeout time.Duration) (*HealthProbe, error) {
	conn, err := dial(ctx, addr, timeout)
	if err != nil {
		return nil, err
	}
	return &HealthProbe{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		token:   serviceToken,
		service: service,
	}, nil
}

func (p *HealthProbe) Probe(ctx context.Context) error {
	ctx = metadata.AppendToOutgoingContext(ctx, serviceTokenHeader, p.token)
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s is %s", p.service, resp.GetStatus())
	}
	return nil
}

func (p *HealthProbe) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Close()
}

func dial(ctx context.Context, addr string, timeout time.Duration) (*grpc.ClientConn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return grpc.DialContext(ctx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}
