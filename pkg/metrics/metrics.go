// Package metrics holds the Prometheus collectors exported by the marketplace
// binaries. Every constructor tolerates a nil registerer and returns a no-op
// recorder, so callers never branch on whether metrics are enabled.
package metrics

const namespace = "anucarts"

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
