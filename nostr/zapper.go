package nostr

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/davidohayon669/ligess/lightning"
)

// Zapper turns invoice settlements into published zap receipts.
type Zapper struct {
	sk        string
	pending   *PendingZaps
	publisher *Publisher
	log       *logrus.Logger
}

func NewZapper(
	sk string,
	pending *PendingZaps,
	publisher *Publisher,
	log *logrus.Logger,
) *Zapper {
	return &Zapper{
		sk:        sk,
		pending:   pending,
		publisher: publisher,
		log:       log,
	}
}

// Run consumes invoice updates until the context is cancelled.
func (z *Zapper) Run(ctx context.Context, updates <-chan *lightning.InvoiceUpdate) {
	for {
		select {
		case invoice := <-updates:
			z.HandleInvoiceUpdate(invoice)
		case <-ctx.Done():
			return
		}
	}
}

// HandleInvoiceUpdate consumes the pending entry for a settled invoice,
// builds its receipt and fires one independent publish attempt per relay
// named in the zap request. One relay failing never affects the others.
func (z *Zapper) HandleInvoiceUpdate(invoice *lightning.InvoiceUpdate) {
	pending, ok := z.pending.ConsumeOnSettlement(invoice)
	if !ok {
		return
	}

	receipt, err := NewZapReceipt(z.sk, pending, invoice)
	if err != nil {
		pending.Log.Errorf("build zap receipt: %v", err)
		return
	}

	pending.Log.WithFields(logrus.Fields{
		"note":    Note(receipt.ID),
		"amount":  invoice.AmountSats,
		"npub":    Npub(pending.Request.PubKey),
		"comment": receipt.Content,
	}).Info("Invoice settled")

	for _, relay := range ZapRequestRelays(pending.Request) {
		go z.publisher.Publish(relay, receipt, pending.Log)
	}
}
