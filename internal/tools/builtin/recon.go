package builtin

import "time"

// NewNmapServer wraps nmap for active port/service scanning.
func NewNmapServer() *CommandServer {
	return NewCommandServer("nmap_scan", "nmap", "Scan a host or CIDR for open ports and services using nmap")
}

// NewNucleiServer wraps nuclei for templated vulnerability scanning.
func NewNucleiServer() *CommandServer {
	s := NewCommandServer("nuclei_scan", "nuclei", "Run nuclei templated vulnerability checks against a target")
	s.Timeout = 600 * time.Second
	return s
}

// NewWhoisServer wraps whois for passive domain/IP registration lookups.
func NewWhoisServer() *CommandServer {
	s := NewCommandServer("whois_lookup", "whois", "Look up domain or IP registration data")
	s.Timeout = 60 * time.Second
	return s
}

// NewDigServer wraps dig for passive DNS record lookups.
func NewDigServer() *CommandServer {
	s := NewCommandServer("dig_lookup", "dig", "Query DNS records for a domain")
	s.Timeout = 60 * time.Second
	return s
}
