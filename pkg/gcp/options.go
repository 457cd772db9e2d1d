// Package gcp builds the client options shared by the Google Cloud clients.
package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/anucarts/marketplace-backend/pkg/config"
)

// ClientOptions picks credentials in order: inline JSON, then a key file.
// With neither set the client falls back to Application Default Credentials,
// which is what runs on Cloud Run.
func ClientOptions(cfg config.GCPConfig, scopes ...string) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(strings.TrimSpace(cfg.ApplicationCredentials)))
	}
	if len(scopes) > 0 {
		opts = append(opts, option.WithScopes(scopes...))
	}
	return opts
}
