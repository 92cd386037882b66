package nwc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sirupsen/logrus"

	"github.com/davidohayon669/ligess/lightning"
	"github.com/davidohayon669/ligess/nostr"
)

// PaymentProcessor answers a verified payment request with a signed
// result event.
type PaymentProcessor interface {
	Process(ctx context.Context, request *goNostr.Event, log *logrus.Entry) *goNostr.Event
}

type payInvoiceParams struct {
	Invoice string `json:"invoice"`
}

type payInvoiceRequest struct {
	Method string           `json:"method"`
	Params payInvoiceParams `json:"params"`
}

// Processor executes pay_invoice requests: decrypt, decode, budget check,
// pay, record. Policy and execution failures become kind-23196 responses
// so the client always receives a terminal answer.
type Processor struct {
	sk      string
	pk      string
	ln      lightning.Service
	decoder lightning.Decoder
	budget  *Budget
	now     func() time.Time
}

func NewProcessor(
	sk string,
	pk string,
	ln lightning.Service,
	decoder lightning.Decoder,
	budget *Budget,
) *Processor {
	return &Processor{
		sk:      sk,
		pk:      pk,
		ln:      ln,
		decoder: decoder,
		budget:  budget,
		now:     time.Now,
	}
}

func (p *Processor) Process(ctx context.Context, request *goNostr.Event, log *logrus.Entry) *goNostr.Event {
	response := &goNostr.Event{
		PubKey:    p.pk,
		CreatedAt: goNostr.Timestamp(p.now().Unix()),
		Tags:      goNostr.Tags{{"e", request.ID}},
	}

	preimage, err := p.payInvoice(ctx, request, log)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Error processing payment request")
		response.Kind = KindPaymentError
		response.Content = err.Error()
	} else {
		response.Kind = KindPaymentSuccess
		response.Content = preimage
	}

	if err := response.Sign(p.sk); err != nil {
		log.Errorf("sign payment response: %v", err)
	}

	return response
}

func (p *Processor) payInvoice(ctx context.Context, request *goNostr.Event, log *logrus.Entry) (string, error) {
	plaintext, err := nostr.DecryptPayload(p.sk, request.PubKey, request.Content)
	if err != nil {
		return "", errors.New("unable to decrypt payment request")
	}

	payRequest := &payInvoiceRequest{}
	if err := json.Unmarshal([]byte(plaintext), payRequest); err != nil {
		return "", errors.New("invalid JSON on payment request payload")
	}
	if payRequest.Method != "pay_invoice" {
		return "", errors.New("unknown method on payment request")
	}

	amountSats, err := p.decoder.AmountSats(payRequest.Params.Invoice)
	if err != nil {
		return "", err
	}

	reservation, err := p.budget.Reserve(amountSats)
	if err != nil {
		return "", err
	}

	payment, err := p.ln.PayInvoice(ctx, payRequest.Params.Invoice)
	if err != nil {
		p.budget.Release(reservation)
		return "", err
	}

	log.WithFields(logrus.Fields{
		"amount":   amountSats,
		"preimage": payment.Preimage,
	}).Info("Invoice paid")

	if err := p.budget.Commit(reservation); err != nil {
		return "", err
	}

	return payment.Preimage, nil
}
