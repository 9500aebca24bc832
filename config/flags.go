package config

import "flag"

// CLIOverrides holds command-line overrides applied on top of a loaded Node.
type CLIOverrides struct {
	ConfigPath    string
	DiscoveryPort int
	TCPPort       int
	DeviceName    string
	OpenMode      bool
	SharedKey     string
	DownloadDir   string
	Adapter       string
	Log           string
}

// ParseFlags parses os.Args into CLIOverrides.
func ParseFlags() CLIOverrides {
	var o CLIOverrides
	flag.StringVar(&o.ConfigPath, "config", "config.yaml", "path to the node's settings file")
	flag.IntVar(&o.DiscoveryPort, "discoveryPort", 0, "override UDP discovery port")
	flag.IntVar(&o.TCPPort, "tcpPort", 0, "override TCP control/transfer port")
	flag.StringVar(&o.DeviceName, "name", "", "override device display name")
	flag.BoolVar(&o.OpenMode, "open", false, "force open (no-auth) mode")
	flag.StringVar(&o.SharedKey, "key", "", "override shared PSK for psk-hmac-sha256 auth")
	flag.StringVar(&o.DownloadDir, "downloadDir", "", "override default download directory")
	flag.StringVar(&o.Adapter, "adapter", "", "bind discovery and the TCP listener to a specific network interface name, or '*' for all")
	flag.StringVar(&o.Log, "log", "", "log level: debug|info|warn|none")
	flag.Parse()
	return o
}

// Apply merges non-zero override fields into n.
func Apply(n Node, o CLIOverrides) Node {
	if o.DiscoveryPort > 0 {
		n.DiscoveryPort = o.DiscoveryPort
	}
	if o.TCPPort > 0 {
		n.TCPPort = o.TCPPort
	}
	if o.DeviceName != "" {
		n.DeviceName = o.DeviceName
	}
	if o.OpenMode {
		n.OpenMode = true
	}
	if o.SharedKey != "" {
		n.SharedKey = o.SharedKey
	}
	if o.DownloadDir != "" {
		n.DownloadDir = o.DownloadDir
	}
	if o.Adapter != "" {
		n.PreferredAdapter = o.Adapter
	}
	return n
}
