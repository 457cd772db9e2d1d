package gcp

import (
	"testing"

	"github.com/anucarts/marketplace-backend/pkg/config"
)

func TestClientOptions(t *testing.T) {
	cases := []struct {
		name   string
		cfg    config.GCPConfig
		scopes []string
		want   int
	}{
		{name: "application default", want: 0},
		{name: "inline json wins", cfg: config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/key.json"}, want: 1},
		{name: "key file", cfg: config.GCPConfig{ApplicationCredentials: " /tmp/key.json "}, want: 1},
		{name: "blank values ignored", cfg: config.GCPConfig{CredentialsJSON: "  "}, want: 0},
		{name: "scopes appended", cfg: config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}, scopes: []string{"s"}, want: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := len(ClientOptions(tc.cfg, tc.scopes...)); got != tc.want {
				t.Fatalf("expected %d options, got %d", tc.want, got)
			}
		})
	}
}
