package nostr

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/davidohayon669/ligess/lightning"
)

func settledInvoice() *lightning.InvoiceUpdate {
	return &lightning.InvoiceUpdate{
		PaymentHash: "hash1",
		Settled:     true,
		SettleDate:  time.Unix(1700000000, 0),
		AmountSats:  21,
		Bolt11:      "lnbc210n1...",
		Preimage:    "deadbeef",
	}
}

func pendingWithRequest(t *testing.T, mutate func(*goNostr.Event)) *PendingZap {
	t.Helper()

	sk := goNostr.GeneratePrivateKey()
	request := &goNostr.Event{
		Kind:      KindZapRequest,
		CreatedAt: goNostr.Now(),
		Content:   "request comment",
		Tags: goNostr.Tags{
			{"p", "recipient"},
			{"e", "zapped-note"},
			{"relays", "wss://relay.one"},
		},
	}
	if mutate != nil {
		mutate(request)
	}
	require.NoError(t, request.Sign(sk))

	raw, err := json.Marshal(request)
	require.NoError(t, err)

	return &PendingZap{
		Request:     request,
		RequestJSON: string(raw),
		Log:         logrus.New().WithField("test", true),
	}
}

func TestNewZapReceipt(t *testing.T) {
	zapperSk := goNostr.GeneratePrivateKey()

	t.Run("builds a verifiable receipt", func(t *testing.T) {
		pending := pendingWithRequest(t, nil)
		invoice := settledInvoice()

		receipt, err := NewZapReceipt(zapperSk, pending, invoice)
		require.NoError(t, err)

		require.Equal(t, KindZapReceipt, receipt.Kind)
		require.EqualValues(t, invoice.SettleDate.Unix(), receipt.CreatedAt)
		require.NoError(t, VerifyEvent(receipt))

		require.Equal(t, goNostr.Tag{"p", "recipient"}, receipt.Tags[0])
		require.Equal(t, goNostr.Tag{"e", "zapped-note"}, receipt.Tags[1])
		require.Equal(t, goNostr.Tag{"bolt11", invoice.Bolt11}, receipt.Tags[2])
		require.Equal(t, goNostr.Tag{"description", pending.RequestJSON}, receipt.Tags[3])
		require.Equal(t, goNostr.Tag{"preimage", invoice.Preimage}, receipt.Tags[4])
	})

	t.Run("comment wins over request content", func(t *testing.T) {
		pending := pendingWithRequest(t, nil)
		pending.Comment = "thanks!"

		receipt, err := NewZapReceipt(zapperSk, pending, settledInvoice())
		require.NoError(t, err)
		require.Equal(t, "thanks!", receipt.Content)
	})

	t.Run("falls back to request content", func(t *testing.T) {
		receipt, err := NewZapReceipt(zapperSk, pendingWithRequest(t, nil), settledInvoice())
		require.NoError(t, err)
		require.Equal(t, "request comment", receipt.Content)
	})

	t.Run("no e tag when request has none", func(t *testing.T) {
		pending := pendingWithRequest(t, func(e *goNostr.Event) {
			e.Tags = goNostr.Tags{
				{"p", "recipient"},
				{"relays", "wss://relay.one"},
			}
		})

		receipt, err := NewZapReceipt(zapperSk, pending, settledInvoice())
		require.NoError(t, err)
		require.Empty(t, FilterTags(receipt.Tags, "e"))
		require.Len(t, receipt.Tags, 4)
	})
}

func TestNewMetadataNote(t *testing.T) {
	t.Run("empty path yields no note", func(t *testing.T) {
		note, err := NewMetadataNote(goNostr.GeneratePrivateKey(), "")
		require.NoError(t, err)
		require.Nil(t, note)
	})

	t.Run("signs the document as kind 0", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metadata.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"name":"ligess"}`), 0600))

		note, err := NewMetadataNote(goNostr.GeneratePrivateKey(), path)
		require.NoError(t, err)
		require.Equal(t, KindProfileMetadata, note.Kind)
		require.JSONEq(t, `{"name":"ligess"}`, note.Content)
		require.NoError(t, VerifyEvent(note))
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metadata.json")
		require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))

		_, err := NewMetadataNote(goNostr.GeneratePrivateKey(), path)
		require.Error(t, err)
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := NewMetadataNote(goNostr.GeneratePrivateKey(), filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
	})
}
