package aws

import (
	"context"
	"testing"
)

func TestLoadAWSConfig_DefaultRegion(t *testing.T) {
	t.Setenv("AWS_ENDPOINT_URL", "")
	cfg, err := LoadAWSConfig(context.Background(), Settings{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Region != DefaultRegion {
		t.Fatalf("expected default region %s, got %s", DefaultRegion, cfg.Region)
	}
	if cfg.BaseEndpoint != nil {
		t.Fatalf("no endpoint expected, got %s", *cfg.BaseEndpoint)
	}
}

func TestLoadAWSConfig_WithEndpoint(t *testing.T) {
	cfg, err := LoadAWSConfig(context.Background(), Settings{Region: "eu-west-2", Endpoint: "http://localhost:4566"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Region != "eu-west-2" {
		t.Fatalf("region mismatch, got %s", cfg.Region)
	}
	if cfg.BaseEndpoint == nil || *cfg.BaseEndpoint != "http://localhost:4566" {
		t.Fatalf("base endpoint not applied: %v", cfg.BaseEndpoint)
	}
}
