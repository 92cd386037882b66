package lightning

import (
	"context"
	"time"
)

const (
	StatusSettled   = "Settled"
	StatusCancelled = "Cancelled"
)

// Invoice is an invoice issued by the node. The preimage is known at
// creation time because we generate it ourselves.
type Invoice struct {
	PaymentHash string
	Bolt11      string
	Preimage    string
	AmountSats  int64
}

// InvoiceUpdate is delivered once an issued invoice reaches a final state.
type InvoiceUpdate struct {
	PaymentHash string
	Status      string
	Settled     bool
	SettleDate  time.Time
	AmountSats  int64
	Bolt11      string
	Preimage    string
}

type Payment struct {
	Preimage string
}

type Service interface {
	AddInvoice(ctx context.Context, amountMsat int64, descriptionHash []byte) (*Invoice, error)
	PayInvoice(ctx context.Context, bolt11 string) (*Payment, error)
	InvoiceUpdates() <-chan *InvoiceUpdate
}
