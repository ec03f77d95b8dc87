package discovery

import (
	"context"
	"fmt"
	"runtime"

	"github.com/JPKribs/snapcontrol/internal"
	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"
)

// MARK: connectAvahi
// Opens the system D-Bus and an Avahi server handle. Only available on linux.
func connectAvahi(logger *internal.Logger) (*dbus.Conn, *avahi.Server, error) {
	if runtime.GOOS != "linux" {
		return nil, nil, fmt.Errorf("avahi requires linux, running on %s", runtime.GOOS)
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		logger.Debug("D-Bus not available", "error", err)
		return nil, nil, fmt.Errorf("connecting to system bus: %w", err)
	}

	server, err := avahi.ServerNew(conn)
	if err != nil {
		logger.Debug("Avahi server creation failed", "error", err)
		conn.Close()
		return nil, nil, fmt.Errorf("creating avahi server: %w", err)
	}

	return conn, server, nil
}

// MARK: NewAvahiBrowser
func NewAvahiBrowser(logger *internal.Logger) (*AvahiBrowser, error) {
	conn, server, err := connectAvahi(logger)
	if err != nil {
		return nil, err
	}
	return &AvahiBrowser{conn: conn, server: server, logger: logger}, nil
}

// MARK: Name
func (b *AvahiBrowser) Name() string {
	return "avahi"
}

// MARK: Browse
// Streams add/remove signals from an Avahi service browser. Avahi reports one instance
// per interface and protocol, so a name is withdrawn only when its last instance goes away.
func (b *AvahiBrowser) Browse(ctx context.Context, serviceType, domain string, events chan<- Event) error {
	sb, err := b.server.ServiceBrowserNew(avahi.InterfaceUnspec, avahi.ProtoUnspec, serviceType, domain, 0)
	if err != nil {
		return fmt.Errorf("creating avahi service browser for %s: %w", serviceType, err)
	}
	defer b.server.ServiceBrowserFree(sb)

	instances := make(map[string]int)

	for {
		select {
		case <-ctx.Done():
			return nil

		case service, ok := <-sb.AddChannel:
			if !ok {
				return fmt.Errorf("avahi browser for %s closed", serviceType)
			}

			name := InstanceName(service.Name, service.Type, service.Domain)
			instances[name]++

			event := Event{Type: EventAnnounced, Name: name}
			if instances[name] > 1 {
				event.Type = EventUpdated
			}

			resolved, err := b.server.ResolveService(
				service.Interface,
				service.Protocol,
				service.Name,
				service.Type,
				service.Domain,
				avahi.ProtoInet,
				0,
			)
			if err != nil {
				event.Err = err
			} else {
				event.Addresses = []string{resolved.Address}
				event.Port = int(resolved.Port)
			}

			if !sendEvent(ctx, events, event) {
				return nil
			}

		case service, ok := <-sb.RemoveChannel:
			if !ok {
				return fmt.Errorf("avahi browser for %s closed", serviceType)
			}

			name := InstanceName(service.Name, service.Type, service.Domain)
			if instances[name] == 0 {
				continue
			}
			instances[name]--
			if instances[name] > 0 {
				continue
			}
			delete(instances, name)

			if !sendEvent(ctx, events, Event{Type: EventWithdrawn, Name: name}) {
				return nil
			}
		}
	}
}

// MARK: Close
func (b *AvahiBrowser) Close() error {
	if b.server != nil {
		b.server.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
