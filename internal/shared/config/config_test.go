package config

import "testing"

func TestLoadAppliesServiceDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "challenge-service")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("METRICS_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != "8083" || cfg.MetricsPort != "9099" {
		t.Fatalf("expected challenge-service ports 8083/9099, got %s/%s", cfg.HTTPPort, cfg.MetricsPort)
	}
	if cfg.TopicChallengeEvents != "challenge_events" {
		t.Fatalf("expected default challenge topic, got %q", cfg.TopicChallengeEvents)
	}
	if cfg.StoreDriver != "postgres" {
		t.Fatalf("expected postgres driver by default, got %q", cfg.StoreDriver)
	}
}

func TestLoadKeepsExplicitOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "deposit-worker")
	t.Setenv("METRICS_PORT", "1234")
	t.Setenv("KAFKA_TOPIC_DEPOSIT_CREDITED", "custom_deposits")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("ADMIN_USER_IDS", "ops-1,ops-2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MetricsPort != "1234" {
		t.Fatalf("expected metrics port override, got %s", cfg.MetricsPort)
	}
	if cfg.HTTPPort != "" {
		t.Fatalf("expected worker without public port, got %q", cfg.HTTPPort)
	}
	if cfg.TopicDepositCredited != "custom_deposits" {
		t.Fatalf("expected topic override, got %q", cfg.TopicDepositCredited)
	}
	if cfg.StoreDriver != "memory" {
		t.Fatalf("expected memory driver, got %q", cfg.StoreDriver)
	}
	if len(cfg.AdminUserIDs) != 2 || cfg.AdminUserIDs[1] != "ops-2" {
		t.Fatalf("expected two admin ids, got %v", cfg.AdminUserIDs)
	}
}
