package qdrant

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestResolveConfigFromEnvValid(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "hotel_chunks")
	t.Setenv("QDRANT_NAMESPACE_PREFIX", "hc")
	t.Setenv("QDRANT_VECTOR_DIM", "768")
	t.Setenv("QDRANT_AUTO_CREATE", "false")
	t.Setenv("QDRANT_TIMEOUT_SECONDS", "3")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.URL != "http://qdrant:6333" {
		t.Fatalf("URL: want=%q got=%q", "http://qdrant:6333", cfg.URL)
	}
	if cfg.Collection != "hotel_chunks" {
		t.Fatalf("Collection: want=%q got=%q", "hotel_chunks", cfg.Collection)
	}
	if cfg.NamespacePrefix != "hc" {
		t.Fatalf("NamespacePrefix: want=%q got=%q", "hc", cfg.NamespacePrefix)
	}
	if cfg.VectorDim != 768 {
		t.Fatalf("VectorDim: want=%d got=%d", 768, cfg.VectorDim)
	}
	if cfg.AutoCreate {
		t.Fatalf("AutoCreate: want=false")
	}
	if cfg.Timeout != 3*time.Second {
		t.Fatalf("Timeout: want=3s got=%s", cfg.Timeout)
	}
}

func TestResolveConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("QDRANT_NAMESPACE_PREFIX", "")
	t.Setenv("QDRANT_VECTOR_DIM", "")
	t.Setenv("QDRANT_AUTO_CREATE", "")
	t.Setenv("QDRANT_TIMEOUT_SECONDS", "")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.Collection != "document_chunks" {
		t.Fatalf("Collection: want=%q got=%q", "document_chunks", cfg.Collection)
	}
	if cfg.NamespacePrefix != DefaultNamespacePrefix {
		t.Fatalf("NamespacePrefix: want=%q got=%q", DefaultNamespacePrefix, cfg.NamespacePrefix)
	}
	if cfg.VectorDim != DefaultVectorDim {
		t.Fatalf("VectorDim: want=%d got=%d", DefaultVectorDim, cfg.VectorDim)
	}
	if !cfg.AutoCreate {
		t.Fatalf("AutoCreate: want=true")
	}
	if cfg.Timeout != defaultTimeout {
		t.Fatalf("Timeout: want=%s got=%s", defaultTimeout, cfg.Timeout)
	}
}

func TestResolveConfigFromEnvErrors(t *testing.T) {
	cases := []struct {
		name string
		url  string
		dim  string
		want ConfigErrorCode
	}{
		{name: "missing url", url: "", dim: "384", want: ConfigErrorMissingURL},
		{name: "relative url", url: "qdrant:6333", dim: "384", want: ConfigErrorInvalidURL},
		{name: "non numeric dim", url: "http://qdrant:6333", dim: "wide", want: ConfigErrorInvalidVectorDim},
		{name: "zero dim", url: "http://qdrant:6333", dim: "0", want: ConfigErrorInvalidVectorDim},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("QDRANT_URL", tc.url)
			t.Setenv("QDRANT_COLLECTION", "hotel_chunks")
			t.Setenv("QDRANT_VECTOR_DIM", tc.dim)

			_, err := ResolveConfigFromEnv()
			if err == nil {
				t.Fatalf("ResolveConfigFromEnv: expected error, got nil")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got=%T", err)
			}
			if cfgErr.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, cfgErr.Code)
			}
		})
	}
}

func TestValidateConfigMissingCollection(t *testing.T) {
	err := ValidateConfig(Config{URL: "http://qdrant:6333", VectorDim: 384})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Code != ConfigErrorMissingCollection {
		t.Fatalf("want missing_collection, got=%v", err)
	}
}

func TestConfigErrorMessagesNameTheSetting(t *testing.T) {
	cases := map[ConfigErrorCode]string{
		ConfigErrorMissingURL:        "QDRANT_URL is required",
		ConfigErrorInvalidURL:        `invalid QDRANT_URL="qdrant:6333"`,
		ConfigErrorMissingCollection: "QDRANT_COLLECTION is required",
		ConfigErrorInvalidVectorDim:  `invalid QDRANT_VECTOR_DIM="qdrant:6333"`,
	}
	for code, want := range cases {
		got := (&ConfigError{Code: code, Value: "qdrant:6333"}).Error()
		if !strings.HasPrefix(got, want) {
			t.Fatalf("%s: want prefix %q got=%q", code, want, got)
		}
	}
}
