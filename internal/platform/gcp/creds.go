package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/yungbote/concierge-backend/internal/platform/envutil"
)

// ClientOptionsFromEnv reads GOOGLE_APPLICATION_CREDENTIALS_JSON, then
// GOOGLE_APPLICATION_CREDENTIALS. A value starting with "{" is inline JSON;
// anything else is a key file path. Nil means application default
// credentials.
func ClientOptionsFromEnv() []option.ClientOption {
	for _, key := range []string{"GOOGLE_APPLICATION_CREDENTIALS_JSON", "GOOGLE_APPLICATION_CREDENTIALS"} {
		v := strings.TrimSpace(envutil.String(key, ""))
		switch {
		case v == "":
			continue
		case strings.HasPrefix(v, "{"):
			return []option.ClientOption{option.WithCredentialsJSON([]byte(v))}
		default:
			return []option.ClientOption{option.WithCredentialsFile(v)}
		}
	}
	return nil
}
