package nwc

import (
	"testing"
	"time"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

type testKeys struct {
	walletSk string
	walletPk string
	authSk   string
	authPk   string
}

func newTestKeys(t *testing.T) testKeys {
	t.Helper()

	walletSk := goNostr.GeneratePrivateKey()
	walletPk, err := goNostr.GetPublicKey(walletSk)
	require.NoError(t, err)
	authSk := goNostr.GeneratePrivateKey()
	authPk, err := goNostr.GetPublicKey(authSk)
	require.NoError(t, err)

	return testKeys{walletSk: walletSk, walletPk: walletPk, authSk: authSk, authPk: authPk}
}

func signedPaymentRequest(t *testing.T, sk string, mutate func(*goNostr.Event)) *goNostr.Event {
	t.Helper()

	event := &goNostr.Event{
		Kind:      KindPaymentRequest,
		CreatedAt: goNostr.Now(),
		Content:   "encrypted-payload",
		Tags: goNostr.Tags{
			{"p", "recipient"},
		},
	}
	if mutate != nil {
		mutate(event)
	}
	require.NoError(t, event.Sign(sk))
	return event
}

func TestVerifyPaymentRequest(t *testing.T) {
	keys := newTestKeys(t)
	now := time.Now()

	t.Run("valid request", func(t *testing.T) {
		event := signedPaymentRequest(t, keys.walletSk, nil)
		require.NoError(t, VerifyPaymentRequest(event, keys.walletPk, now))
	})

	t.Run("wrong kind", func(t *testing.T) {
		event := signedPaymentRequest(t, keys.walletSk, func(e *goNostr.Event) { e.Kind = 1 })
		require.ErrorContains(t, VerifyPaymentRequest(event, keys.walletPk, now), "not a payment request")
	})

	t.Run("stale timestamp", func(t *testing.T) {
		event := signedPaymentRequest(t, keys.walletSk, func(e *goNostr.Event) {
			e.CreatedAt = goNostr.Timestamp(now.Add(-time.Minute).Unix())
		})
		require.ErrorContains(t, VerifyPaymentRequest(event, keys.walletPk, now), "timestamp out of bounds")
	})

	t.Run("unknown pubkey", func(t *testing.T) {
		event := signedPaymentRequest(t, keys.authSk, nil)
		require.ErrorContains(t, VerifyPaymentRequest(event, keys.walletPk, now), "unknown pubkey")
	})

	t.Run("no p tag", func(t *testing.T) {
		event := signedPaymentRequest(t, keys.walletSk, func(e *goNostr.Event) {
			e.Tags = goNostr.Tags{{"x", "y"}}
		})
		require.ErrorContains(t, VerifyPaymentRequest(event, keys.walletPk, now), "no p tag")
	})

	t.Run("two e tags", func(t *testing.T) {
		event := signedPaymentRequest(t, keys.walletSk, func(e *goNostr.Event) {
			e.Tags = append(e.Tags, goNostr.Tag{"e", "one"}, goNostr.Tag{"e", "two"})
		})
		require.ErrorContains(t, VerifyPaymentRequest(event, keys.walletPk, now), "multiple e tags")
	})

	t.Run("tampered signature", func(t *testing.T) {
		event := signedPaymentRequest(t, keys.walletSk, nil)
		event.Content = "tampered"
		require.Error(t, VerifyPaymentRequest(event, keys.walletPk, now))
	})
}

func signedAuthResponse(t *testing.T, sk, challenge string, mutate func(*goNostr.Event)) *goNostr.Event {
	t.Helper()

	event := &goNostr.Event{
		Kind:      KindClientAuth,
		CreatedAt: goNostr.Now(),
		Tags: goNostr.Tags{
			{"challenge", challenge},
			{"relay", "wss://relay.example.com"},
		},
	}
	if mutate != nil {
		mutate(event)
	}
	require.NoError(t, event.Sign(sk))
	return event
}

func TestVerifyAuthResponse(t *testing.T) {
	keys := newTestKeys(t)
	now := time.Now()
	const challenge = "c0ffee"
	const relayHost = "relay.example.com"

	verify := func(event *goNostr.Event) (string, error) {
		return VerifyAuthResponse(event, challenge, relayHost, false, keys.walletPk, keys.authPk, now)
	}

	t.Run("auth key authenticates", func(t *testing.T) {
		pk, err := verify(signedAuthResponse(t, keys.authSk, challenge, nil))
		require.NoError(t, err)
		require.Equal(t, keys.authPk, pk)
	})

	t.Run("wallet key authenticates", func(t *testing.T) {
		pk, err := verify(signedAuthResponse(t, keys.walletSk, challenge, nil))
		require.NoError(t, err)
		require.Equal(t, keys.walletPk, pk)
	})

	t.Run("unknown signer rejected", func(t *testing.T) {
		strangerSk := goNostr.GeneratePrivateKey()
		_, err := verify(signedAuthResponse(t, strangerSk, challenge, nil))
		require.ErrorContains(t, err, "unknown pubkey")
	})

	t.Run("wrong challenge", func(t *testing.T) {
		_, err := verify(signedAuthResponse(t, keys.authSk, "wrong", nil))
		require.ErrorContains(t, err, "challenge does not match")
	})

	t.Run("relay host mismatch", func(t *testing.T) {
		event := signedAuthResponse(t, keys.authSk, challenge, func(e *goNostr.Event) {
			e.Tags = goNostr.Tags{
				{"challenge", challenge},
				{"relay", "wss://evil.example.org"},
			}
		})
		_, err := verify(event)
		require.ErrorContains(t, err, "relay host mismatch")
	})

	t.Run("host check bypassed on all interfaces", func(t *testing.T) {
		event := signedAuthResponse(t, keys.authSk, challenge, func(e *goNostr.Event) {
			e.Tags = goNostr.Tags{
				{"challenge", challenge},
				{"relay", "wss://evil.example.org"},
			}
		})
		_, err := VerifyAuthResponse(event, challenge, relayHost, true, keys.walletPk, keys.authPk, now)
		require.NoError(t, err)
	})

	t.Run("bad relay scheme", func(t *testing.T) {
		event := signedAuthResponse(t, keys.authSk, challenge, func(e *goNostr.Event) {
			e.Tags = goNostr.Tags{
				{"challenge", challenge},
				{"relay", "https://relay.example.com"},
			}
		})
		_, err := verify(event)
		require.ErrorContains(t, err, "invalid relay protocol")
	})

	t.Run("wrong kind", func(t *testing.T) {
		event := signedAuthResponse(t, keys.authSk, challenge, func(e *goNostr.Event) { e.Kind = 1 })
		_, err := verify(event)
		require.ErrorContains(t, err, "not an auth response")
	})

	t.Run("stale timestamp", func(t *testing.T) {
		event := signedAuthResponse(t, keys.authSk, challenge, func(e *goNostr.Event) {
			e.CreatedAt = goNostr.Timestamp(now.Add(time.Minute).Unix())
		})
		_, err := verify(event)
		require.ErrorContains(t, err, "timestamp out of bounds")
	})

	t.Run("wallet-only when no auth key configured", func(t *testing.T) {
		event := signedAuthResponse(t, keys.authSk, challenge, nil)
		_, err := VerifyAuthResponse(event, challenge, relayHost, false, keys.walletPk, "", now)
		require.ErrorContains(t, err, "unknown pubkey")
	})
}
