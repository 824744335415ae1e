package main

import (
	"flag"
	"os"
)

// envOrFlag returns the environment variable value when set, falling back to
// the flag value. Used for vendor-standard variables like STRIPE_SECRET_KEY
// that deployments expect to work without any flag.
func envOrFlag(envName string, flagVal *string) string {
	if v := os.Getenv(envName); v != "" {
		return v
	}
	if flagVal == nil {
		return ""
	}
	return *flagVal
}

// applyEnvOverrides sets flag values from the environment. A flag passed
// explicitly on the command line always wins over its environment variable;
// the environment only replaces defaults.
func applyEnvOverrides() {
	passed := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { passed[f.Name] = true })

	override := func(envName, flagName string, dst *string) {
		if passed[flagName] {
			return
		}
		if v := os.Getenv(envName); v != "" {
			*dst = v
		}
	}

	override("CONSOLE_ADDR", "addr", addr)
	override("DATABASE_URL", "database-url", databaseURL)
	override("CONSOLE_SQLITE_PATH", "sqlite", sqlitePath)
	override("CONSOLE_JWT_SECRET", "jwt-secret", jwtSecret)
	override("CONSOLE_ALLOWED_TENANTS", "allowed-tenants", allowedTenants)
	override("REDIS_ADDR", "redis-addr", redisAddr)
	override("NATS_URL", "nats-url", natsURL)
	override("CHAT_WEBHOOK_URL", "chat-webhook", chatWebhook)
	override("STRIPE_PRICE_STARTER", "stripe-price-starter", priceStarter)
	override("STRIPE_PRICE_PROFESSIONAL", "stripe-price-professional", priceProfessional)
	override("CONSOLE_CHECKOUT_SUCCESS_URL", "checkout-success-url", checkoutSuccessURL)
	override("CONSOLE_CHECKOUT_CANCEL_URL", "checkout-cancel-url", checkoutCancelURL)
}
