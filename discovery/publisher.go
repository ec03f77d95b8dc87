package discovery

import (
	"fmt"
	"os"
	"strings"

	"github.com/JPKribs/snapcontrol/internal"
	"github.com/grandcat/zeroconf"
	"github.com/holoplot/go-avahi"
)

const publishServiceType = "_http._tcp"

// MARK: NewPublisher
func NewPublisher(logger *internal.Logger) *Publisher {
	return &Publisher{logger: logger}
}

// MARK: Publish
// Advertises name on port as _http._tcp, through Avahi when preferAvahi is set and available,
// otherwise through zeroconf. Publishing again replaces the previous advertisement.
func (p *Publisher) Publish(name string, port int, txt []string, preferAvahi bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if name == "" {
		return fmt.Errorf("%w: publish name cannot be empty", internal.ErrInvalidArgument)
	}

	p.unpublishLocked()

	if preferAvahi && p.server == nil {
		conn, server, err := connectAvahi(p.logger)
		if err == nil {
			p.conn = conn
			p.server = server
		} else {
			p.logger.Info("Avahi not available, using zeroconf fallback", "error", err)
		}
	}
	p.useAvahi = p.server != nil

	if p.useAvahi {
		return p.publishAvahi(name, port, txt)
	}
	return p.publishZeroconf(name, port, txt)
}

// MARK: publishAvahi
func (p *Publisher) publishAvahi(name string, port int, txt []string) error {
	if p.hostName == "" {
		p.hostName = p.resolveHostName()
	}

	entryGroup, err := p.server.EntryGroupNew()
	if err != nil {
		return fmt.Errorf("failed to create entry group for %s: %w", name, err)
	}

	err = entryGroup.AddService(
		avahi.InterfaceUnspec,
		avahi.ProtoUnspec,
		0,
		name,
		publishServiceType,
		"local",
		p.hostName,
		uint16(port),
		convertTXTRecords(txt),
	)
	if err != nil {
		entryGroup.Reset()
		return fmt.Errorf("failed to add service %s: %w", name, err)
	}

	if err := entryGroup.Commit(); err != nil {
		entryGroup.Reset()
		return fmt.Errorf("failed to commit service %s: %w", name, err)
	}

	p.entryGroup = entryGroup
	p.published = name
	p.logger.Info("Published HTTP surface via Avahi", "name", name, "port", port, "host", p.hostName)
	return nil
}

// MARK: publishZeroconf
func (p *Publisher) publishZeroconf(name string, port int, txt []string) error {
	server, err := zeroconf.Register(name, publishServiceType, "local.", port, txt, nil)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", name, err)
	}

	p.zcServer = server
	p.published = name
	p.logger.Info("Published HTTP surface via zeroconf", "name", name, "port", port)
	return nil
}

// MARK: resolveHostName
// Prefers the Avahi host name, then the OS host name with a .local suffix.
func (p *Publisher) resolveHostName() string {
	if p.server != nil {
		if hostname, err := p.server.GetHostNameFqdn(); err == nil && hostname != "" {
			return hostname
		}
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return ""
	}
	if !strings.HasSuffix(hostname, ".local") {
		hostname += ".local"
	}
	return hostname
}

// MARK: Unpublish
// Withdraws the advertisement and releases the backend.
func (p *Publisher) Unpublish() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unpublishLocked()

	if p.server != nil {
		p.server.Close()
		p.server = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		if err != nil {
			return fmt.Errorf("closing system bus: %w", err)
		}
	}
	return nil
}

func (p *Publisher) unpublishLocked() {
	if p.published == "" {
		return
	}

	if p.entryGroup != nil {
		if err := p.entryGroup.Reset(); err != nil {
			p.logger.Error("Failed to reset entry group", "name", p.published, "error", err)
		}
		p.entryGroup = nil
	}
	if p.zcServer != nil {
		p.zcServer.Shutdown()
		p.zcServer = nil
	}

	p.logger.Info("Stopped publishing HTTP surface", "name", p.published)
	p.published = ""
}

// MARK: Published
// Returns the advertised name and backend, or empty strings when nothing is published.
func (p *Publisher) Published() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.published == "" {
		return "", ""
	}
	if p.useAvahi {
		return p.published, "avahi"
	}
	return p.published, "zeroconf"
}

// MARK: convertTXTRecords
// Converts string slice to byte slice slice for Avahi API.
func convertTXTRecords(records []string) [][]byte {
	result := make([][]byte, len(records))
	for i, record := range records {
		result[i] = []byte(record)
	}
	return result
}
