// Package announce publishes the bridge's TCP endpoint over mDNS so bench
// tooling can find the device without knowing its address.
//
// The announcement lives exactly as long as bridge mode: the scheduler
// starts it on mode entry and stops it on teardown, so a device sitting in
// its provisioning console is invisible on the network.
package announce

import (
	"fmt"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/calef/uartbridge/internal/logging"
	"github.com/calef/uartbridge/internal/version"
)

const (
	// ServiceType is the mDNS service type the bridge advertises as.
	ServiceType = "_uartbridge._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."
)

// Service is one mDNS registration. The zero value is ready to use; Start
// and Stop pair up across mode transitions.
type Service struct {
	// Instance overrides the advertised instance name. Defaults to
	// "uartbridge-<hostname>".
	Instance string

	mu     sync.Mutex
	server *zeroconf.Server
}

// Start registers the service on the given TCP port. Starting an already
// started service is an error; the scheduler never does.
func (s *Service) Start(port uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("announcement already running")
	}

	instance := s.Instance
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "unknown"
		}
		instance = "uartbridge-" + host
	}

	txt := []string{"version=" + version.Version}
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, int(port), txt, nil)
	if err != nil {
		return fmt.Errorf("registering mDNS service: %w", err)
	}
	s.server = server

	logging.Info("Service announced",
		zap.String("instance", instance),
		zap.String("type", ServiceType),
		zap.Uint16("port", port),
	)
	return nil
}

// Stop withdraws the registration. Stopping a stopped service is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return
	}
	s.server.Shutdown()
	s.server = nil
	logging.Info("Service announcement withdrawn")
}
