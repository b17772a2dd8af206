// Package testutil provides testing utilities for nanoclaw.
package testutil

// Safe test credentials that won't trigger secret scanning.
// These are intentionally simple and obviously fake.
const (
	// FakeLinearAPIKey is a safe test API key for Linear.
	FakeLinearAPIKey = "test-linear-api-key"

	// FakeLinearUserID is the watched (bot) account used across tests.
	FakeLinearUserID = "user-bot-123"

	// FakeBearerToken is a safe test bearer token for the gateway.
	FakeBearerToken = "test-bearer-token"
)
