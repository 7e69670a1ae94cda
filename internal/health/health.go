// CLASSIFICATION: COMMUNITY
// Filename: health.go v0.1
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

// Package health reports the serving state of each mount over the standard
// gRPC health checking protocol. The empty service name covers the whole
// server; every mount prefix is a service of its own.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// Overall is the service name standing for the whole server.
const Overall = ""

// Reporter tracks serving status per mount.
type Reporter struct {
	srv *health.Server
}

// NewReporter returns a reporter with the overall service and every
// prefix marked as serving.
func NewReporter(prefixes ...string) *Reporter {
	r := &Reporter{srv: health.NewServer()}
	for _, p := range prefixes {
		r.SetServing(p, true)
	}
	return r
}

// SetServing flips the status of service.
func (r *Reporter) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	r.srv.SetServingStatus(service, status)
}

// Status returns the status name of service, or SERVICE_UNKNOWN.
func (r *Reporter) Status(service string) string {
	resp, err := r.srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN.String()
	}
	return resp.GetStatus().String()
}

// Register exposes the reporter on s.
func (r *Reporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.srv)
}

// Shutdown marks every service as not serving and ignores later updates.
func (r *Reporter) Shutdown() {
	r.srv.Shutdown()
}

// Serve runs a gRPC server for r on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, r *Reporter) error {
	s := grpc.NewServer()
	r.Register(s)
	go func() {
		<-ctx.Done()
		r.Shutdown()
		s.GracefulStop()
	}()
	if err := s.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// Check asks the health service at addr about service.
func Check(ctx context.Context, addr, service string, timeout time.Duration, opts ...grpc.DialOption) (*healthpb.HealthCheckResponse, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("health address required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
}

// Format renders a health response as JSON.
func Format(resp *healthpb.HealthCheckResponse) string {
	return protojson.Format(resp)
}
