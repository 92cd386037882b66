package nwc

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	goNostr "github.com/nbd-wtf/go-nostr"

	"github.com/davidohayon669/ligess/nostr"
)

const (
	KindWalletInfo     = 13194
	KindPaymentRequest = 23194
	KindPaymentSuccess = 23195
	KindPaymentError   = 23196
	KindClientAuth     = 22242

	maxClockSkew = 10 * time.Second
)

// VerifyPaymentRequest checks an inbound kind-23194 event. The payload is
// encrypted to the wallet key, so the event itself must also be authored
// by the wallet key.
func VerifyPaymentRequest(event *goNostr.Event, walletPk string, now time.Time) error {
	if event.Kind != KindPaymentRequest {
		return errors.New("event is not a payment request")
	}

	if outsideClockSkew(event.CreatedAt, now) {
		return errors.New("timestamp out of bounds")
	}

	if event.PubKey != walletPk {
		return errors.New("event has unknown pubkey")
	}

	if len(event.Tags) == 0 {
		return errors.New("no tags on payment request")
	}

	ptags := nostr.FilterTags(event.Tags, "p")
	if len(ptags) == 0 {
		return errors.New("no p tag on payment request")
	}
	if len(ptags) >= 2 {
		return errors.New("multiple p tags on payment request")
	}

	if etags := nostr.FilterTags(event.Tags, "e"); len(etags) >= 2 {
		return errors.New("multiple e tags on payment request")
	}

	return nostr.VerifyEvent(event)
}

// VerifyAuthResponse checks a kind-22242 challenge response and returns
// the authenticated pubkey. The relay host check is bypassed when the
// server listens on all interfaces. The signer must be the configured
// client-authentication key or the wallet's own key.
func VerifyAuthResponse(
	event *goNostr.Event,
	challenge string,
	relayHost string,
	skipHostCheck bool,
	walletPk string,
	authPk string,
	now time.Time,
) (string, error) {
	if event.Kind != KindClientAuth {
		return "", errors.New("auth event is not an auth response")
	}

	if outsideClockSkew(event.CreatedAt, now) {
		return "", errors.New("timestamp out of bounds")
	}

	challengeTags := nostr.FilterTags(event.Tags, "challenge")
	if len(challengeTags) != 1 {
		return "", errors.New("challenge tags invalid length")
	}
	if challengeTags[0][1] != challenge {
		return "", errors.New("challenge does not match")
	}

	relayTags := nostr.FilterTags(event.Tags, "relay")
	if len(relayTags) != 1 {
		return "", errors.New("relay tags invalid length")
	}
	relay, err := url.Parse(relayTags[0][1])
	if err != nil {
		return "", errors.New("invalid relay url")
	}
	if relay.Scheme != "ws" && relay.Scheme != "wss" {
		return "", errors.New("invalid relay protocol")
	}
	if !skipHostCheck && relay.Hostname() != relayHost {
		return "", errors.New("relay host mismatch")
	}

	if err := nostr.VerifyEvent(event); err != nil {
		return "", err
	}

	// the response may be signed by either configured key
	if event.PubKey != walletPk && (authPk == "" || event.PubKey != authPk) {
		return "", fmt.Errorf("authentication of unknown pubkey: %s", nostr.Npub(event.PubKey))
	}

	return event.PubKey, nil
}

func outsideClockSkew(createdAt goNostr.Timestamp, now time.Time) bool {
	diff := createdAt.Time().Sub(now)
	if diff < 0 {
		diff = -diff
	}
	return diff > maxClockSkew
}
