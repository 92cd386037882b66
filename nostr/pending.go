package nostr

import (
	"sync"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sirupsen/logrus"

	"github.com/davidohayon669/ligess/lightning"
)

// PendingZap is a zap request waiting for its invoice to settle.
// RequestJSON is the request exactly as received, so the receipt's
// description tag matches the hash committed into the invoice.
type PendingZap struct {
	Request     *goNostr.Event
	RequestJSON string
	Comment     string
	Log         *logrus.Entry
}

// PendingZaps correlates payment hashes to waiting zap requests. At most
// one live entry exists per hash and each entry is consumed at most once.
type PendingZaps struct {
	mu     sync.Mutex
	byHash map[string]*PendingZap
}

func NewPendingZaps() *PendingZaps {
	return &PendingZaps{
		byHash: make(map[string]*PendingZap),
	}
}

func (p *PendingZaps) Store(paymentHash string, pending *PendingZap) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byHash[paymentHash] = pending
}

// ConsumeOnSettlement hands off the entry for a settled invoice exactly
// once. Cancelled invoices drop their entry; unsettled updates and repeat
// settlement notifications are no-ops.
func (p *PendingZaps) ConsumeOnSettlement(invoice *lightning.InvoiceUpdate) (*PendingZap, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if invoice.Status == lightning.StatusCancelled {
		delete(p.byHash, invoice.PaymentHash)
		return nil, false
	}
	if !invoice.Settled {
		return nil, false
	}

	pending, ok := p.byHash[invoice.PaymentHash]
	if !ok {
		return nil, false
	}
	delete(p.byHash, invoice.PaymentHash)

	return pending, true
}
