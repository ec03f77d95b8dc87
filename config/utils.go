package config

import (
	"sort"
	"time"

	"github.com/JPKribs/snapcontrol/utilities"
)

// MARK: seconds
func seconds(n int) time.Duration {
	return utilities.Seconds(n)
}

// MARK: sortedKeys
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
