package main

import (
	"flag"
	"os"
	"testing"
)

func TestEnvOrFlag(t *testing.T) {
	t.Run("returns env when set", func(t *testing.T) {
		t.Setenv("TEST_ENV_OR_FLAG", "from-env")
		flagVal := "from-flag"
		got := envOrFlag("TEST_ENV_OR_FLAG", &flagVal)
		if got != "from-env" {
			t.Errorf("envOrFlag = %q, want %q", got, "from-env")
		}
	})

	t.Run("returns flag when env not set", func(t *testing.T) {
		flagVal := "from-flag"
		got := envOrFlag("UNSET_ENV_VAR_XYZ", &flagVal)
		if got != "from-flag" {
			t.Errorf("envOrFlag = %q, want %q", got, "from-flag")
		}
	})

	t.Run("returns empty when both unset", func(t *testing.T) {
		got := envOrFlag("UNSET_ENV_VAR_XYZ", nil)
		if got != "" {
			t.Errorf("envOrFlag = %q, want empty", got)
		}
	})
}

func TestApplyEnvOverrides(t *testing.T) {
	// Save and restore original flag values after test.
	origAddr := *addr
	origDatabaseURL := *databaseURL
	origJWTSecret := *jwtSecret
	origRedisAddr := *redisAddr
	origChatWebhook := *chatWebhook
	t.Cleanup(func() {
		*addr = origAddr
		*databaseURL = origDatabaseURL
		*jwtSecret = origJWTSecret
		*redisAddr = origRedisAddr
		*chatWebhook = origChatWebhook
	})

	t.Run("CONSOLE_ADDR sets addr flag", func(t *testing.T) {
		*addr = ":8080"
		t.Setenv("CONSOLE_ADDR", ":9090")
		applyEnvOverrides()
		if *addr != ":9090" {
			t.Errorf("addr = %q, want %q", *addr, ":9090")
		}
	})

	t.Run("DATABASE_URL sets database-url flag", func(t *testing.T) {
		*databaseURL = ""
		t.Setenv("DATABASE_URL", "postgres://console:secret@db/console")
		applyEnvOverrides()
		if *databaseURL != "postgres://console:secret@db/console" {
			t.Errorf("databaseURL = %q, want %q", *databaseURL, "postgres://console:secret@db/console")
		}
	})

	t.Run("CONSOLE_JWT_SECRET sets jwt-secret flag", func(t *testing.T) {
		*jwtSecret = ""
		t.Setenv("CONSOLE_JWT_SECRET", "my-secret")
		applyEnvOverrides()
		if *jwtSecret != "my-secret" {
			t.Errorf("jwtSecret = %q, want %q", *jwtSecret, "my-secret")
		}
	})

	t.Run("REDIS_ADDR sets redis-addr flag", func(t *testing.T) {
		*redisAddr = ""
		t.Setenv("REDIS_ADDR", "redis:6379")
		applyEnvOverrides()
		if *redisAddr != "redis:6379" {
			t.Errorf("redisAddr = %q, want %q", *redisAddr, "redis:6379")
		}
	})

	t.Run("CHAT_WEBHOOK_URL sets chat-webhook flag", func(t *testing.T) {
		*chatWebhook = ""
		t.Setenv("CHAT_WEBHOOK_URL", "https://chat.example.com/hooks/abc")
		applyEnvOverrides()
		if *chatWebhook != "https://chat.example.com/hooks/abc" {
			t.Errorf("chatWebhook = %q, want %q", *chatWebhook, "https://chat.example.com/hooks/abc")
		}
	})

	t.Run("explicit flag not overridden by env", func(t *testing.T) {
		// Use flag.Set so the flag appears in the "visited" set, which
		// is what happens when the user passes -addr on the command line.
		_ = flag.Set("addr", ":7777")
		t.Setenv("CONSOLE_ADDR", ":9999")

		applyEnvOverrides()
		if *addr != ":7777" {
			t.Errorf("addr = %q, want %q (explicit flag should not be overridden by env)", *addr, ":7777")
		}
	})
}

func TestEnvOverridesDoNotPanic(t *testing.T) {
	// Ensure applyEnvOverrides does not panic even when no env vars are set.
	origAddr := *addr
	origDatabaseURL := *databaseURL
	t.Cleanup(func() {
		*addr = origAddr
		*databaseURL = origDatabaseURL
	})

	// Clear all relevant env vars.
	for _, key := range []string{
		"CONSOLE_ADDR",
		"DATABASE_URL",
		"CONSOLE_SQLITE_PATH",
		"CONSOLE_JWT_SECRET",
		"CONSOLE_ALLOWED_TENANTS",
		"REDIS_ADDR",
		"NATS_URL",
		"CHAT_WEBHOOK_URL",
		"STRIPE_PRICE_STARTER",
		"STRIPE_PRICE_PROFESSIONAL",
	} {
		os.Unsetenv(key)
	}

	applyEnvOverrides() // must not panic
}
