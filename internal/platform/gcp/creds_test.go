package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientOptionsFromEnv(t *testing.T) {
	cases := []struct {
		name  string
		json  string
		path  string
		count int
	}{
		{name: "default credentials", count: 0},
		{name: "inline json", json: `{"type":"service_account"}`, count: 1},
		{name: "key file", path: "/var/secrets/gcp.json", count: 1},
		{name: "json wins over path", json: `{"type":"service_account"}`, path: "/var/secrets/gcp.json", count: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", tc.json)
			t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", tc.path)
			assert.Len(t, ClientOptionsFromEnv(), tc.count)
		})
	}
}
