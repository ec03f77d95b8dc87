package utilities

import (
	"fmt"
	"net"
	"strconv"
)

// MARK: GetSystemIPv4s
// Retrieves the IPv4 addresses of every up, non-loopback interface, private LAN ranges first.
func GetSystemIPv4s() ([]string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var preferred []string
	var others []string

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() {
				continue
			}
			ipv4 := ipnet.IP.To4()
			if ipv4 == nil {
				continue
			}
			if isPreferredPrivateIP(ipv4) {
				preferred = append(preferred, ipv4.String())
			} else {
				others = append(others, ipv4.String())
			}
		}
	}

	all := append(preferred, others...)
	if len(all) == 0 {
		return nil, fmt.Errorf("no IPv4 address on any active interface")
	}

	return all, nil
}

// MARK: GetInterfaceDetails
// Retrieves name, IPv4 addresses, state and MTU for every non-loopback interface.
func GetInterfaceDetails() ([]NetworkInterface, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var details []NetworkInterface
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		var ipAddresses []string
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				if ipv4 := ipnet.IP.To4(); ipv4 != nil {
					ipAddresses = append(ipAddresses, ipv4.String())
				}
			}
		}

		if len(ipAddresses) > 0 {
			details = append(details, NetworkInterface{
				Name:      iface.Name,
				Addresses: ipAddresses,
				IsUp:      iface.Flags&net.FlagUp != 0,
				MTU:       iface.MTU,
			})
		}
	}

	return details, nil
}

// MARK: FirstIPv4
// Returns the first candidate that parses as an IPv4 address.
func FirstIPv4(candidates []string) (string, bool) {
	for _, candidate := range candidates {
		ip := net.ParseIP(candidate)
		if ip == nil {
			continue
		}
		if ipv4 := ip.To4(); ipv4 != nil {
			return ipv4.String(), true
		}
	}
	return "", false
}

// MARK: ValidPort
func ValidPort(port int) bool {
	return port > 0 && port <= 65535
}

// MARK: ReplacePort
// Swaps the port of a host:port listen address, keeping the host.
func ReplacePort(addr string, port int) (string, error) {
	if !ValidPort(port) {
		return "", fmt.Errorf("port %d out of range", port)
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// MARK: PortOf
// Extracts the numeric port from a host:port listen address.
func PortOf(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || !ValidPort(port) {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return port, nil
}

// MARK: isPreferredPrivateIP
func isPreferredPrivateIP(ip net.IP) bool {
	for _, cidr := range []string{"192.168.0.0/16", "10.0.0.0/8", "172.16.0.0/12"} {
		_, block, _ := net.ParseCIDR(cidr)
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
