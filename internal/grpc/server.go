package grpc

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// AlertsService is the health service name reported for the alert pipeline.
const AlertsService = "disasterwatch.alerts"

// Server exposes gRPC health checking and reflection so orchestrators can
// probe whether the alert dispatcher is accepting work.
type Server struct {
	health     *health.Server
	grpcServer *grpc.Server
	logger     *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	s := &Server{
		health:     health.NewServer(),
		grpcServer: grpc.NewServer(),
		logger:     logger,
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)
	s.health.SetServingStatus(AlertsService, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("gRPC server listening", "addr", addr)
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// SetServing flips the alerts service status and the overall server status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(AlertsService, status)
	s.health.SetServingStatus("", status)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
