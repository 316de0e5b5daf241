package loadbalancer

import "sync"

// LoadBalancer hands out backend base URLs round robin. The gateway uses it
// to spread TDDF traffic across service instances.
type LoadBalancer struct {
	servers []string
	mu      sync.Mutex
	current int
}

func NewLoadBalancer(servers []string) *LoadBalancer {
	return &LoadBalancer{servers: servers}
}

// GetNextServer returns the next backend in rotation, or "" when the
// balancer was built with no servers.
func (lb *LoadBalancer) GetNextServer() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if len(lb.servers) == 0 {
		return ""
	}
	server := lb.servers[lb.current]
	lb.current = (lb.current + 1) % len(lb.servers)
	return server
}
