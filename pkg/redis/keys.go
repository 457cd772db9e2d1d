package redis

import "strings"

const defaultNamespace = "ac"

// Keyspace builds namespaced keys of the form <ns>:<kind>:<parts...>.
// The zero value uses the "ac" namespace.
type Keyspace struct {
	Namespace string
}

func (k Keyspace) key(kind string, parts ...string) string {
	ns := k.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	var b strings.Builder
	b.WriteString(ns)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}

// IdempotencyKey scopes a client-supplied Idempotency-Key to a route.
func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.key("idempotency", scope, id)
}

func (k Keyspace) RateLimitKey(scope string) string {
	return k.key("rate_limit", scope)
}

// AccessSessionKey indexes the refresh token issued alongside an access token.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.key("session", "access", accessID)
}

func (k Keyspace) CartKey(buyerID string) string {
	return k.key("cart", buyerID)
}

func (k Keyspace) LockKey(name string) string {
	return k.key("lock", name)
}
