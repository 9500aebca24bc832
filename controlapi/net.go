package controlapi

import "net"

func splitHostPort(hostport string) (string, string, error) {
	return net.SplitHostPort(hostport)
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
