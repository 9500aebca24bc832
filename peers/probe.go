// Package peers implements an optional active reachability probe: a
// stronger liveness signal than "last announce <= 7000ms" that a
// caller may run against a peer already present in the peer
// directory. It never feeds back into peerdir.Peer.Online, which
// remains governed solely by the last-seen rule.
package peers

import (
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ProbeResult summarizes one reachability probe.
type ProbeResult struct {
	Reachable  bool
	RTT        time.Duration
	PacketLoss float64
}

// Probe sends a small number of ICMP echo requests to address and
// reports whether the peer answered. It runs unprivileged (UDP ping)
// so it does not require elevated permissions on Linux or macOS.
func Probe(address string, timeout time.Duration) (ProbeResult, error) {
	pinger, err := probing.NewPinger(address)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("create pinger for %s: %w", address, err)
	}
	pinger.SetPrivileged(false)
	pinger.Count = 3
	pinger.Timeout = timeout
	if err := pinger.Run(); err != nil {
		return ProbeResult{}, fmt.Errorf("probe %s: %w", address, err)
	}
	stats := pinger.Statistics()
	return ProbeResult{
		Reachable:  stats.PacketsRecv > 0,
		RTT:        stats.AvgRtt,
		PacketLoss: stats.PacketLoss,
	}, nil
}
