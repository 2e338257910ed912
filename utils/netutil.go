package utils

import (
	"fmt"
	"net"
	"strings"
)

// virtual or otherwise unroutable adapters that should never be offered
// as the pairing address
var excludedInterfaceKeywords = []string{
	"virtual", "vmware", "virtualbox", "hyper-v", "wsl",
	"docker", "veth", "loopback", "bluetooth", "tun", "tap",
}

// BestLocalIP picks the IPv4 address a phone on the same LAN is most
// likely able to reach: first up, non-loopback, non-virtual interface
// with a private unicast address.
func BestLocalIP() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isExcludedInterface(iface.Name) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() {
				continue
			}
			return ip4.String(), nil
		}
	}

	return "", fmt.Errorf("no suitable network interface found")
}

func isExcludedInterface(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range excludedInterfaceKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
