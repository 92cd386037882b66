package nostr

import (
	"errors"
	"fmt"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// VerifyEvent recomputes the canonical id of the event and checks the
// Schnorr signature against it. Both must hold before the event is
// trusted in any way.
func VerifyEvent(e *goNostr.Event) error {
	if e.GetID() != e.ID {
		return errors.New("invalid id on event")
	}

	ok, err := e.CheckSignature()
	if err != nil {
		return fmt.Errorf("check signature: %w", err)
	}
	if !ok {
		return errors.New("invalid signature on event")
	}

	return nil
}

// EncryptPayload encrypts plaintext for the holder of peerPub using the
// conversation key derived from the two key pairs.
func EncryptPayload(sk, peerPub, plaintext string) (string, error) {
	shared, err := nip04.ComputeSharedSecret(peerPub, sk)
	if err != nil {
		return "", err
	}
	return nip04.Encrypt(plaintext, shared)
}

// DecryptPayload decrypts a payload addressed to the holder of sk and
// authored by peerPub.
func DecryptPayload(sk, peerPub, content string) (string, error) {
	shared, err := nip04.ComputeSharedSecret(peerPub, sk)
	if err != nil {
		return "", err
	}
	return nip04.Decrypt(content, shared)
}

// Npub renders a public key for logs. Falls back to the raw hex when the
// key does not encode.
func Npub(pk string) string {
	npub, err := nip19.EncodePublicKey(pk)
	if err != nil {
		return pk
	}
	return npub
}

// Note renders an event id for logs.
func Note(id string) string {
	note, err := nip19.EncodeNote(id)
	if err != nil {
		return id
	}
	return note
}

// FilterTags returns every well-formed tag (name plus at least one value)
// with the given name, preserving order.
func FilterTags(tags goNostr.Tags, name string) goNostr.Tags {
	matched := make(goNostr.Tags, 0, 1)
	for _, t := range tags {
		if len(t) >= 2 && t[0] == name {
			matched = append(matched, t)
		}
	}
	return matched
}
