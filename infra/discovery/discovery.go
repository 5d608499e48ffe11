/*
Package discovery announces the node to the Consul agent. The service
entry advertises the framed-protocol port; the agent health check polls
the operational HTTP surface. Nothing here runs when CONSUL_ENABLED is
falsy.
*/
package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/hashicorp/consul/api"

	"github.com/chatfabric/chat-node/config"
)

const checkInterval = "10s"

type Registration struct {
	client *api.Client
	cfg    *config.Config
	logger *slog.Logger

	// host is the advertised address, resolved once at construction.
	host string
}

func NewRegistration(client *api.Client, cfg *config.Config, logger *slog.Logger) *Registration {
	return &Registration{
		client: client,
		cfg:    cfg,
		logger: logger,
		host:   resolveHost(),
	}
}

// Register writes the service entry. The build name doubles as the
// service id, so one registration exists per node name.
func (r *Registration) Register() error {
	checkURL := fmt.Sprintf("http://%s/health-check",
		net.JoinHostPort(r.host, strconv.Itoa(r.cfg.Health.Port)))

	entry := &api.AgentServiceRegistration{
		ID:      r.cfg.Build.Name,
		Name:    r.cfg.Build.Name,
		Address: r.host,
		Port:    r.cfg.Port,
		Tags:    []string{r.cfg.Build.Environment},
		Check: &api.AgentServiceCheck{
			HTTP:     checkURL,
			Interval: checkInterval,
		},
	}

	if err := r.client.Agent().ServiceRegister(entry); err != nil {
		return fmt.Errorf("discovery: register %s: %w", entry.Name, err)
	}
	r.logger.Info("NODE_REGISTERED", "service", entry.Name, "address", r.host, "port", entry.Port)
	return nil
}

func (r *Registration) Deregister() error {
	if err := r.client.Agent().ServiceDeregister(r.cfg.Build.Name); err != nil {
		return fmt.Errorf("discovery: deregister %s: %w", r.cfg.Build.Name, err)
	}
	r.logger.Info("NODE_DEREGISTERED", "service", r.cfg.Build.Name)
	return nil
}

// resolveHost picks the address peers should reach this node at: the
// hostname's first resolved address, the bare hostname when resolution
// fails, loopback as the last resort.
func resolveHost() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "127.0.0.1"
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil || len(addrs) == 0 {
		return hostname
	}
	return addrs[0]
}
