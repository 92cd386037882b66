package lnd

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/invoices"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/invoicesrpc"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/sirupsen/logrus"

	"github.com/davidohayon669/ligess/lightning"
)

const payTimeout = 60 * time.Second

type lnd struct {
	svc     *lndclient.GrpcLndServices
	log     *logrus.Logger
	updates chan *lightning.InvoiceUpdate
}

func New(
	address string,
	grpcPort string,
	macaroonHex string,
	tlsData string,
	network lndclient.Network,
	log *logrus.Logger,
) (lightning.Service, error) {
	svc, err := lndclient.NewLndServices(&lndclient.LndServicesConfig{
		LndAddress:        fmt.Sprintf("%s:%s", address, grpcPort),
		Network:           network,
		CustomMacaroonHex: macaroonHex,
		TLSData:           tlsData,
	})
	if err != nil {
		return nil, err
	}

	return &lnd{
		svc:     svc,
		log:     log,
		updates: make(chan *lightning.InvoiceUpdate),
	}, nil
}

func (l *lnd) AddInvoice(
	ctx context.Context,
	amountMsat int64,
	descriptionHash []byte,
) (*lightning.Invoice, error) {
	preimage := &lntypes.Preimage{}
	if _, err := rand.Read(preimage[:]); err != nil {
		return nil, err
	}

	hash, bolt11, err := l.svc.Client.AddInvoice(
		ctx,
		&invoicesrpc.AddInvoiceData{
			Value:           lnwire.MilliSatoshi(amountMsat),
			DescriptionHash: descriptionHash,
			Preimage:        preimage,
		},
	)
	if err != nil {
		return nil, err
	}

	invoice := &lightning.Invoice{
		PaymentHash: hash.String(),
		Bolt11:      bolt11,
		Preimage:    preimage.String(),
		AmountSats:  amountMsat / 1000,
	}

	go l.trackInvoice(hash, invoice)

	return invoice, nil
}

// trackInvoice watches a single issued invoice until it settles or is
// cancelled and forwards the final state on the updates channel.
func (l *lnd) trackInvoice(hash lntypes.Hash, invoice *lightning.Invoice) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u, errs, err := l.svc.Invoices.SubscribeSingleInvoice(ctx, hash)
	if err != nil {
		l.log.Errorf("[lnd] subscribe invoice %s %+v", hash, err)
		return
	}

	for {
		select {
		case update := <-u:
			switch update.State {
			case invoices.ContractSettled:
				l.updates <- &lightning.InvoiceUpdate{
					PaymentHash: invoice.PaymentHash,
					Status:      lightning.StatusSettled,
					Settled:     true,
					SettleDate:  time.Now(),
					AmountSats:  invoice.AmountSats,
					Bolt11:      invoice.Bolt11,
					Preimage:    invoice.Preimage,
				}
				return
			case invoices.ContractCanceled:
				l.updates <- &lightning.InvoiceUpdate{
					PaymentHash: invoice.PaymentHash,
					Status:      lightning.StatusCancelled,
					Bolt11:      invoice.Bolt11,
					AmountSats:  invoice.AmountSats,
				}
				return
			}
		case err := <-errs:
			if err != nil {
				l.log.Errorf("[lnd] invoice subscription %s %+v", hash, err)
			}
			return
		}
	}
}

func (l *lnd) PayInvoice(ctx context.Context, bolt11 string) (*lightning.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, payTimeout)
	defer cancel()

	status, errs, err := l.svc.Router.SendPayment(
		ctx,
		lndclient.SendPaymentRequest{
			Invoice: bolt11,
			Timeout: payTimeout,
		},
	)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case s := <-status:
			if s.State == lnrpc.Payment_SUCCEEDED {
				return &lightning.Payment{
					Preimage: s.Preimage.String(),
				}, nil
			}
			if s.State == lnrpc.Payment_FAILED {
				return nil, fmt.Errorf("payment failed: %v", s.FailureReason)
			}
		case err := <-errs:
			return nil, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *lnd) InvoiceUpdates() <-chan *lightning.InvoiceUpdate {
	return l.updates
}
