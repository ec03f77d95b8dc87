package discovery

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/JPKribs/snapcontrol/internal"
	"github.com/grandcat/zeroconf"
)

// MARK: NewZeroconfBrowser
// Creates a browser that polls with repeated browse rounds. zeroconf never reports
// departures, so instances absent for MissedRounds consecutive rounds are withdrawn.
func NewZeroconfBrowser(opts ZeroconfOptions, logger *internal.Logger) *ZeroconfBrowser {
	if opts.BrowseWindow <= 0 {
		opts.BrowseWindow = 5 * time.Second
	}
	if opts.BrowseInterval <= 0 {
		opts.BrowseInterval = 15 * time.Second
	}
	if opts.MissedRounds <= 0 {
		opts.MissedRounds = 3
	}

	return &ZeroconfBrowser{
		window:       opts.BrowseWindow,
		interval:     opts.BrowseInterval,
		missedRounds: opts.MissedRounds,
		logger:       logger,
	}
}

// MARK: Name
func (b *ZeroconfBrowser) Name() string {
	return "zeroconf"
}

// MARK: Close
func (b *ZeroconfBrowser) Close() error {
	return nil
}

// MARK: Browse
func (b *ZeroconfBrowser) Browse(ctx context.Context, serviceType, domain string, events chan<- Event) error {
	state := make(map[string]*trackedInstance)

	for {
		seen, err := b.browseRound(ctx, serviceType, domain)
		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			b.logger.Warn("Zeroconf browse round failed", "service_type", serviceType, "error", err)
		} else {
			for _, event := range diffRound(state, seen, b.missedRounds) {
				if !sendEvent(ctx, events, event) {
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.interval):
		}
	}
}

// MARK: browseRound
// Collects every instance answering within one browse window.
func (b *ZeroconfBrowser) browseRound(ctx context.Context, serviceType, domain string) (map[string]observedInstance, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("creating resolver: %w", err)
	}

	roundCtx, cancel := context.WithTimeout(ctx, b.window)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(roundCtx, serviceType, domain, entries); err != nil {
		return nil, fmt.Errorf("browsing %s: %w", serviceType, err)
	}

	seen := make(map[string]observedInstance)
	for {
		select {
		case <-roundCtx.Done():
			return seen, nil
		case entry, ok := <-entries:
			if !ok {
				return seen, nil
			}
			if entry == nil || entry.Instance == "" {
				continue
			}

			name := InstanceName(entry.Instance, entry.Service, entry.Domain)
			observed := observedInstance{Port: entry.Port}
			for _, ip := range entry.AddrIPv4 {
				observed.Addresses = append(observed.Addresses, ip.String())
			}
			if previous, exists := seen[name]; exists && len(observed.Addresses) == 0 {
				observed.Addresses = previous.Addresses
			}
			seen[name] = observed
		}
	}
}

// MARK: observedInstance
type observedInstance struct {
	Addresses []string
	Port      int
}

func (o observedInstance) equal(other observedInstance) bool {
	return o.Port == other.Port && slices.Equal(o.Addresses, other.Addresses)
}

// MARK: trackedInstance
type trackedInstance struct {
	observed observedInstance
	missed   int
}

// MARK: diffRound
// Folds one round of observations into state and returns the resulting events in name order.
func diffRound(state map[string]*trackedInstance, seen map[string]observedInstance, missedRounds int) []Event {
	var events []Event

	for _, name := range sortedNames(seen) {
		observed := seen[name]
		tracked, exists := state[name]
		if !exists {
			state[name] = &trackedInstance{observed: observed}
			events = append(events, Event{Type: EventAnnounced, Name: name, Addresses: observed.Addresses, Port: observed.Port})
			continue
		}

		tracked.missed = 0
		if !tracked.observed.equal(observed) {
			tracked.observed = observed
			events = append(events, Event{Type: EventUpdated, Name: name, Addresses: observed.Addresses, Port: observed.Port})
		}
	}

	for _, name := range sortedNames(state) {
		if _, present := seen[name]; present {
			continue
		}
		tracked := state[name]
		tracked.missed++
		if tracked.missed >= missedRounds {
			delete(state, name)
			events = append(events, Event{Type: EventWithdrawn, Name: name, Addresses: tracked.observed.Addresses, Port: tracked.observed.Port})
		}
	}

	return events
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
