package bootstrap

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banktrail/ingestor/internal/platform/launcher"
	"github.com/banktrail/ingestor/internal/platform/mlog"
)

// grpcApp runs a bare gRPC server exposing the standard health-checking
// service, modeled on the teacher's ServerGRPC. A separate admin tooling
// process watches this for liveness/readiness rather than polling the HTTP
// surface, mirroring the teacher's split between the data-plane HTTP API and
// an operational gRPC surface.
type grpcApp struct {
	addr   string
	logger mlog.Logger

	server *grpc.Server
	health *health.Server
}

func newGRPCApp(addr string, logger mlog.Logger) *grpcApp {
	server := grpc.NewServer()
	healthSrv := health.NewServer()

	grpc_health_v1.RegisterHealthServer(server, healthSrv)
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &grpcApp{addr: addr, logger: logger, server: server, health: healthSrv}
}

// SetServingStatus lets the rest of bootstrap flip readiness — e.g. once a
// connection to every backing store has been confirmed.
func (a *grpcApp) SetServingStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	a.health.SetServingStatus(service, status)
}

func (a *grpcApp) Run(l *launcher.Launcher) error {
	listener, err := net.Listen("tcp4", a.addr)
	if err != nil {
		return err
	}

	a.logger.Infof("grpc: health service listening on %s", a.addr)

	return a.server.Serve(listener)
}
