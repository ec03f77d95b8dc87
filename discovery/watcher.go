package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/utilities"
)

const defaultEventBuffer = 64

// MARK: NewWatcher
// Creates a watcher that turns browser events into added/removed callbacks.
func NewWatcher(browser Browser, domain string, logger *internal.Logger) *Watcher {
	return &Watcher{
		browser: browser,
		domain:  domain,
		logger:  logger,
		buffer:  defaultEventBuffer,
	}
}

// MARK: Backend
func (w *Watcher) Backend() string {
	return w.browser.Name()
}

// MARK: Subscribe
// Starts browsing serviceType. Callbacks run on a single goroutine per subscription in
// arrival order and must not call Close on their own subscription.
func (w *Watcher) Subscribe(
	ctx context.Context,
	serviceType string,
	kind ServiceKind,
	onAdded func(ServiceAnnouncement),
	onRemoved func(ServiceAnnouncement),
) (*Subscription, error) {
	if serviceType == "" {
		return nil, fmt.Errorf("%w: service type cannot be empty", internal.ErrInvalidArgument)
	}
	if onAdded == nil || onRemoved == nil {
		return nil, fmt.Errorf("%w: both callbacks are required", internal.ErrInvalidArgument)
	}

	browseCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event, w.buffer)
	sub := &Subscription{
		serviceType: serviceType,
		cancel:      cancel,
	}

	sub.wg.Add(2)
	go func() {
		defer sub.wg.Done()
		err := w.browser.Browse(browseCtx, serviceType, w.domain, events)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("Discovery browse stopped", "service_type", serviceType, "backend", w.browser.Name(), "error", err)
			sub.setErr(err)
		}
	}()

	go func() {
		defer sub.wg.Done()
		w.dispatch(browseCtx, serviceType, kind, events, onAdded, onRemoved)
	}()

	w.logger.Info("Subscribed to service type", "service_type", serviceType, "kind", kind.String(), "backend", w.browser.Name())
	return sub, nil
}

// MARK: dispatch
func (w *Watcher) dispatch(
	ctx context.Context,
	serviceType string,
	kind ServiceKind,
	events <-chan Event,
	onAdded func(ServiceAnnouncement),
	onRemoved func(ServiceAnnouncement),
) {
	known := make(map[string]ServiceAnnouncement)

	for {
		var event Event
		select {
		case <-ctx.Done():
			return
		case event = <-events:
		}

		if ctx.Err() != nil {
			return
		}

		switch event.Type {
		case EventAnnounced, EventUpdated:
			announcement, err := resolve(event, kind)
			if err != nil {
				w.logger.Warn("Dropping unresolvable service", "service_type", serviceType, "name", event.Name, "error", err)
				continue
			}

			if previous, seen := known[event.Name]; seen {
				known[event.Name] = announcement
				w.logger.Info("Service updated",
					"service_type", serviceType,
					"name", event.Name,
					"address", announcement.Address,
					"port", announcement.Port,
					"previous_address", previous.Address,
					"previous_port", previous.Port)
				continue
			}

			known[event.Name] = announcement
			w.logger.Debug("Service added", "service_type", serviceType, "name", event.Name, "address", announcement.Address, "port", announcement.Port)
			onAdded(announcement)

		case EventWithdrawn:
			announcement, seen := known[event.Name]
			if !seen {
				w.logger.Debug("Ignoring withdrawal of unknown service", "service_type", serviceType, "name", event.Name)
				continue
			}
			delete(known, event.Name)
			w.logger.Debug("Service removed", "service_type", serviceType, "name", event.Name)
			onRemoved(announcement)
		}
	}
}

// MARK: resolve
// Builds an announcement from the first IPv4 candidate of an event.
func resolve(event Event, kind ServiceKind) (ServiceAnnouncement, error) {
	if event.Err != nil {
		return ServiceAnnouncement{}, fmt.Errorf("resolution failed: %w", event.Err)
	}
	if event.Name == "" {
		return ServiceAnnouncement{}, fmt.Errorf("empty service name")
	}

	address, ok := utilities.FirstIPv4(event.Addresses)
	if !ok {
		return ServiceAnnouncement{}, fmt.Errorf("no IPv4 address in %v", event.Addresses)
	}
	if !utilities.ValidPort(event.Port) {
		return ServiceAnnouncement{}, fmt.Errorf("invalid port %d", event.Port)
	}

	return ServiceAnnouncement{
		Name:    event.Name,
		Address: address,
		Port:    event.Port,
		Kind:    kind,
	}, nil
}

// MARK: Close
// Stops browsing and waits for the dispatcher; no callback runs after Close returns.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

// MARK: ServiceType
func (s *Subscription) ServiceType() string {
	return s.serviceType
}

// MARK: Err
// Returns the error that stopped the browser, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// MARK: sendEvent
// Delivers an event unless ctx ends first.
func sendEvent(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
