// LibPolyCall daemon
//
// Standalone process hosting the protocol engine, FFI dispatch core, and
// micro-component runtime behind one orchestrator. The byte-stream transport
// itself (sockets, TLS) is out of this module's scope — this binary wires
// subsystems and handles process lifecycle only.
//
// Usage:
//
//	go run ./cmd/polycalld                 # defaults
//	go build -o polycalld ./cmd/polycalld && ./polycalld
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obinexus/polycall-sub011/config"
	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/orchestrator"
)

func main() {
	serviceName := flag.String("service-name", "polycalld", "service name reported in traces and logs")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "max time to wait for graceful shutdown")
	flag.Parse()

	logger := errs.StdLogger{}
	logger.Info("polycalld_starting", "service_name", *serviceName)

	cfg := config.Default()
	cfg.ServiceName = *serviceName
	config.Set(cfg)

	orch, err := orchestrator.New(cfg, orchestrator.Deps{Logger: logger})
	if err != nil {
		logger.Error("orchestrator_init_failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("orchestrator_ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("LibPolyCall daemon %q running\n", *serviceName)
	fmt.Println("Press Ctrl+C to stop")

	sig := <-sigCh
	logger.Info("shutdown_signal_received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()

	if err := orch.Shutdown(ctx); err != nil {
		logger.Error("polycalld_shutdown_error", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("polycalld_stopped")
}
