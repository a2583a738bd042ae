// Package discovery finds Henry validation servers on the local network
// over mDNS, and advertises one. Adapted from the teacher's
// internal/mdns package (which discovers IIOD servers) for the Henry
// protocol's own service type.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type Henry validation servers
// advertise under.
const ServiceType = "_henry._tcp"

// Domain is the mDNS domain Browse/Advertise operate in.
const Domain = "local."

// Server describes one discovered Henry validation server.
type Server struct {
	Instance  string
	Hostname  string
	Addresses []net.IP
	Port      int
	TXT       []string
}

// Browse performs a blocking mDNS browse for Henry validation servers,
// returning deduplicated entries once timeout elapses.
func Browse(ctx context.Context, timeout time.Duration) ([]Server, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	results := make(map[string]Server)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					close(done)
					return
				}
				if e == nil {
					continue
				}
				addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
				addrs = append(addrs, e.AddrIPv4...)
				addrs = append(addrs, e.AddrIPv6...)

				key := fmt.Sprintf("%s|%d", e.HostName, e.Port)
				results[key] = Server{
					Instance:  cleanInstance(e.Instance),
					Hostname:  e.HostName,
					Addresses: addrs,
					Port:      e.Port,
					TXT:       append([]string{}, e.Text...),
				}
			case <-ctx.Done():
				close(done)
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("discovery: browse: %w", err)
	}

	<-done

	out := make([]Server, 0, len(results))
	for _, s := range results {
		out = append(out, s)
	}
	return out, nil
}

// Advertisement is a running mDNS advertisement for this process's
// Henry validation server.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers this host as a Henry validation server on the
// local network under ServiceType, reachable at port.
func Advertise(instance string, port int, txt []string) (*Advertisement, error) {
	server, err := zeroconf.Register(instance, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register: %w", err)
	}
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertisement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

func cleanInstance(s string) string {
	return strings.ReplaceAll(s, `\ `, " ")
}
