package helper

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// PrivateRanges are always allowed to see operator pages.
var PrivateRanges = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/8",
}

func IsIpExcluded(clientIP string, exemptIps []*net.IPNet) bool {
	ip := net.ParseIP(clientIP)
	for _, block := range exemptIps {
		if block.Contains(ip) {
			return true
		}
	}

	return false
}

func ParseCIDR(cidr string) (*net.IPNet, error) {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	return ipNet, nil
}

// ParseCIDRs parses the private ranges followed by extra.
func ParseCIDRs(extra []string) ([]*net.IPNet, error) {
	var ips []*net.IPNet
	all := append(append([]string{}, PrivateRanges...), extra...)
	for _, c := range all {
		parsed, err := ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("error parsing cidr %s: %v", c, err)
		}
		ips = append(ips, parsed)
	}
	return ips, nil
}

// ClientIP resolves the address a request came from. When header is set,
// the forwarded chain is walked right to left skipping exempt (proxy)
// addresses, and depth further hops are skipped after that.
func ClientIP(req *http.Request, header string, depth int, exemptIps []*net.IPNet) string {
	ip := ""
	if header != "" {
		if v := req.Header.Get(header); v != "" {
			components := strings.Split(v, ",")
			for i := len(components) - 1; i >= 0; i-- {
				candidate := strings.TrimSpace(components[i])
				if IsIpExcluded(candidate, exemptIps) {
					continue
				}
				if depth == 0 {
					ip = candidate
					break
				}
				depth--
			}
		}
	}
	if ip == "" {
		ip = req.RemoteAddr
	}
	if strings.Contains(ip, ":") {
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	}
	return ip
}
