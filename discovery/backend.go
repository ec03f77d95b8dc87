package discovery

import (
	"fmt"

	"github.com/JPKribs/snapcontrol/internal"
)

// MARK: OpenBrowser
// Selects a browser backend: "avahi", "zeroconf", or "auto" which tries Avahi and falls back to zeroconf.
func OpenBrowser(backend string, opts ZeroconfOptions, logger *internal.Logger) (Browser, error) {
	switch backend {
	case "avahi":
		browser, err := NewAvahiBrowser(logger)
		if err != nil {
			return nil, fmt.Errorf("opening avahi browser: %w", err)
		}
		return browser, nil

	case "zeroconf":
		return NewZeroconfBrowser(opts, logger), nil

	case "", "auto":
		browser, err := NewAvahiBrowser(logger)
		if err == nil {
			return browser, nil
		}
		logger.Info("Avahi not available, using zeroconf fallback", "error", err)
		return NewZeroconfBrowser(opts, logger), nil

	default:
		return nil, fmt.Errorf("%w: unknown discovery backend %q", internal.ErrInvalidArgument, backend)
	}
}
