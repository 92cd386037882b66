package nostr

import (
	"testing"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

func TestVerifyEvent(t *testing.T) {
	sk := goNostr.GeneratePrivateKey()

	newSigned := func() *goNostr.Event {
		e := &goNostr.Event{
			Kind:      1,
			CreatedAt: goNostr.Now(),
			Tags:      goNostr.Tags{{"t", "test"}},
			Content:   "hello",
		}
		require.NoError(t, e.Sign(sk))
		return e
	}

	t.Run("signed event verifies", func(t *testing.T) {
		require.NoError(t, VerifyEvent(newSigned()))
	})

	t.Run("mutated content fails", func(t *testing.T) {
		e := newSigned()
		e.Content = "tampered"
		require.Error(t, VerifyEvent(e))
	})

	t.Run("mutated tags fail", func(t *testing.T) {
		e := newSigned()
		e.Tags = append(e.Tags, goNostr.Tag{"t", "sneaky"})
		require.Error(t, VerifyEvent(e))
	})

	t.Run("mutated kind fails", func(t *testing.T) {
		e := newSigned()
		e.Kind = 2
		require.Error(t, VerifyEvent(e))
	})

	t.Run("id is deterministic", func(t *testing.T) {
		a := &goNostr.Event{Kind: 1, CreatedAt: 1700000000, Content: "same"}
		b := &goNostr.Event{Kind: 1, CreatedAt: 1700000000, Content: "same"}
		require.Equal(t, a.GetID(), b.GetID())
	})
}

func TestPayloadEncryption(t *testing.T) {
	aliceSk := goNostr.GeneratePrivateKey()
	alicePk, err := goNostr.GetPublicKey(aliceSk)
	require.NoError(t, err)
	bobSk := goNostr.GeneratePrivateKey()
	bobPk, err := goNostr.GetPublicKey(bobSk)
	require.NoError(t, err)

	plaintext := `{"method":"pay_invoice","params":{"invoice":"lnbc1"}}`

	ciphertext, err := EncryptPayload(aliceSk, bobPk, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	decrypted, err := DecryptPayload(bobSk, alicePk, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestFilterTags(t *testing.T) {
	tags := goNostr.Tags{
		{"p", "aa"},
		{"e", "bb"},
		{"p", "cc"},
		{"p"}, // too short, dropped
		{"relays", "wss://one", "wss://two"},
	}

	require.Len(t, FilterTags(tags, "p"), 2)
	require.Len(t, FilterTags(tags, "e"), 1)
	require.Len(t, FilterTags(tags, "relays"), 1)
	require.Empty(t, FilterTags(tags, "amount"))
}
