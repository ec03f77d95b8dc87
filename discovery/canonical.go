package discovery

import "strings"

// MARK: CanonicalName
// Maps a raw announced name onto its logical key. Total and deterministic:
// "LivingRoom.control._tcp.local." becomes "LivingRoom".
func CanonicalName(raw string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(raw), ".")

	labels := strings.Split(trimmed, ".")
	for i, label := range labels {
		if label != "_tcp" && label != "_udp" {
			continue
		}
		if i >= 2 {
			if key := strings.Join(labels[:i-1], "."); key != "" {
				return key
			}
		}
		return trimmed
	}

	if key := strings.TrimSuffix(trimmed, ".local"); key != "" {
		return key
	}
	return trimmed
}

// MARK: InstanceName
// Joins an instance, service type and domain into the full name a browser reports.
func InstanceName(instance, serviceType, domain string) string {
	name := instance + "." + strings.Trim(serviceType, ".")
	if domain = strings.Trim(domain, "."); domain != "" {
		name += "." + domain
	}
	return name + "."
}
