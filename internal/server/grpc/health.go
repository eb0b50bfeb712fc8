// Package grpcserver runs the ops listener: gRPC health checking driven by a
// periodic storage probe.
package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-checked service, next to the overall "" entry.
const ServiceName = "stremur.v1.WatchState"

// Probe reports whether a dependency is usable.
type Probe func(ctx context.Context) error

// Health keeps the health status in line with a probe.
type Health struct {
	hs       *health.Server
	probe    Probe
	interval time.Duration
	log      *zap.Logger
}

// NewHealth returns a reporter that starts NOT_SERVING until the first probe passes.
func NewHealth(probe Probe, interval time.Duration, log *zap.Logger) *Health {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Health{hs: health.NewServer(), probe: probe, interval: interval, log: log}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *Health) set(st healthpb.HealthCheckResponse_ServingStatus) {
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
}

// Check runs the probe once and updates the status.
func (h *Health) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.probe(ctx); err != nil {
		h.log.Warn("health: probe failed", zap.Error(err))
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Run probes on every interval until ctx ends, then marks everything NOT_SERVING.
func (h *Health) Run(ctx context.Context) {
	h.Check(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}

// NewServer builds the ops gRPC server with logging and recovery interceptors.
// dev enables server reflection.
func NewServer(h *Health, log *zap.Logger, dev bool, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.hs)
	if dev {
		reflection.Register(s)
	}
	return s
}
