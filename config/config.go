// Package config loads and persists the local node's settings. It acts
// as the single settings collaborator: core packages (registry,
// session, discovery) only ever see the typed Node below, never a file
// path or YAML tree.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ShareEntry is the on-disk shape of one persisted share.
type ShareEntry struct {
	ShareID    string `yaml:"shareId"`
	Name       string `yaml:"name"`
	LocalPath  string `yaml:"localPath"`
	ReadOnly   bool   `yaml:"readOnly"`
}

// Node is the full set of settings a running node needs.
type Node struct {
	DeviceID        string       `yaml:"deviceId"`
	DeviceName      string       `yaml:"deviceName"`
	DiscoveryPort   int          `yaml:"discoveryPort"`
	TCPPort         int          `yaml:"tcpPort"`
	OpenMode        bool         `yaml:"openMode"`
	SharedKey       string       `yaml:"sharedKey,omitempty"`
	DownloadDir     string       `yaml:"downloadDir"`
	PreferredAdapter string      `yaml:"preferredAdapter,omitempty"`
	Shares          []ShareEntry `yaml:"shares,omitempty"`
	ControlAPIAddr  string       `yaml:"controlApiAddr,omitempty"`
}

// ProtocolVersion is the string carried in every ANNOUNCE and HELLO.
const ProtocolVersion = "1.0"

const (
	DefaultDiscoveryPort = 40123
	DefaultTCPPort       = 40124
)

func defaultNode() Node {
	return Node{
		DeviceID:      generateDeviceID(),
		DeviceName:    "netshare-node",
		DiscoveryPort: DefaultDiscoveryPort,
		TCPPort:       DefaultTCPPort,
		OpenMode:      true,
		DownloadDir:   "./downloads",
		ControlAPIAddr: "127.0.0.1:40180",
	}
}

func generateDeviceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(b)
}

// Load reads a YAML settings file at path, creating one with defaults
// if it does not exist yet.
func Load(path string) (Node, error) {
	if path == "" {
		path = "config.yaml"
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			n := defaultNode()
			if writeErr := Save(path, n); writeErr != nil {
				return n, fmt.Errorf("config file not found, and failed to write default: %w", writeErr)
			}
			return n, nil
		}
		return Node{}, fmt.Errorf("stat config file: %w", err)
	}
	if info.IsDir() {
		return Node{}, fmt.Errorf("config path %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Node{}, fmt.Errorf("read config file: %w", err)
	}
	n := defaultNode()
	if err := yaml.Unmarshal(data, &n); err != nil {
		return Node{}, fmt.Errorf("parse config file: %w", err)
	}
	if n.DeviceID == "" {
		n.DeviceID = generateDeviceID()
	}
	return n, nil
}

// Save persists a Node to path as YAML.
func Save(path string, n Node) error {
	data, err := yaml.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
