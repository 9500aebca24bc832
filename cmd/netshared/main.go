package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"netshare/config"
	"netshare/controlapi"
	"netshare/discovery"
	"netshare/logging"
	"netshare/notify"
	"netshare/peerdir"
	"netshare/registry"
	"netshare/session"
)

func main() {
	overrides := config.ParseFlags()
	node, err := config.Load(overrides.ConfigPath)
	if err != nil {
		logging.Default().Fatalf("load config: %v", err)
	}
	node = config.Apply(node, overrides)
	logging.SetLevel(overrides.Log)

	logging.Default().Infof("device %s (%s) starting", node.DeviceID, node.DeviceName)

	if err := os.MkdirAll(node.DownloadDir, 0o755); err != nil {
		logging.Default().Fatalf("create download directory: %v", err)
	}

	dbPath := filepath.Join(filepath.Dir(overrides.ConfigPath), "netshare-shares.db")
	shares, err := registry.Open(dbPath)
	if err != nil {
		logging.Default().Fatalf("open share registry: %v", err)
	}
	defer shares.Close()

	for _, entry := range node.Shares {
		if _, err := shares.Add(entry.LocalPath, entry.ReadOnly, entry.ShareID, entry.Name); err != nil {
			logging.Default().Warnf("restore configured share %s: %v", entry.LocalPath, err)
		}
	}
	if _, err := shares.Add(node.DownloadDir, false, "", "Downloads"); err != nil {
		logging.Default().Warnf("register default download share: %v", err)
	}

	bus := notify.Default
	dir := peerdir.New()

	identity := session.Identity{DeviceID: node.DeviceID, DeviceName: node.DeviceName, Proto: config.ProtocolVersion}
	policy := session.Policy{OpenMode: node.OpenMode, SharedKey: node.SharedKey}

	disc := discovery.New(discovery.Self{
		DeviceID:      node.DeviceID,
		DeviceName:    node.DeviceName,
		Proto:         config.ProtocolVersion,
		TCPPort:       node.TCPPort,
		DiscoveryPort: node.DiscoveryPort,
		Capability:    discovery.Capability{AuthModes: authModes(policy), Resume: true},
	}, dir, discovery.Options{RespondToQueries: true})

	srv := session.NewServer(identity, policy, shares, bus)

	ctrl := controlapi.New(node.ControlAPIAddr, shares, dir, identity, policy, bus, disc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bindAddr := "0.0.0.0"
	if node.PreferredAdapter != "" && node.PreferredAdapter != "*" {
		bindAddr = resolveAdapterAddr(node.PreferredAdapter)
	}

	discStop := make(chan struct{})
	go func() {
		if err := disc.Run(bindAddr, discStop); err != nil {
			logging.Default().Errorf("discovery service stopped: %v", err)
		}
	}()
	if err := disc.SendQuery(); err != nil {
		logging.Default().Warnf("startup discovery query failed: %v", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bindAddr, node.TCPPort))
	if err != nil {
		logging.Default().Fatalf("listen tcp: %v", err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil {
			logging.Default().Errorf("session server stopped: %v", err)
		}
	}()

	go func() {
		if err := ctrl.Start(ctx); err != nil {
			logging.Default().Errorf("control api server stopped: %v", err)
		}
	}()

	logging.Default().Infof("listening: discovery udp/%d, transfer tcp/%d, control %s", node.DiscoveryPort, node.TCPPort, node.ControlAPIAddr)

	<-ctx.Done()
	logging.Default().Info("shutting down")
	close(discStop)
	_ = ln.Close()
}

func authModes(p session.Policy) []string {
	if p.OpenMode {
		return []string{"open"}
	}
	return []string{"psk-hmac-sha256"}
}

// resolveAdapterAddr looks up the first IPv4 address bound to the named
// network interface, falling back to the wildcard address if it cannot
// be resolved.
func resolveAdapterAddr(name string) string {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		logging.Default().Warnf("adapter %q not found, binding all interfaces: %v", name, err)
		return "0.0.0.0"
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "0.0.0.0"
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "0.0.0.0"
}
