package lightning

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
)

// Decoder extracts the amount from a bolt11 payment request without
// talking to the node.
type Decoder interface {
	AmountSats(bolt11 string) (int64, error)
}

type bolt11Decoder struct {
	params *chaincfg.Params
}

func NewDecoder(network string) (Decoder, error) {
	params, err := chainParams(network)
	if err != nil {
		return nil, err
	}
	return &bolt11Decoder{params: params}, nil
}

func (d *bolt11Decoder) AmountSats(bolt11 string) (int64, error) {
	invoice, err := zpay32.Decode(bolt11, d.params)
	if err != nil {
		return 0, fmt.Errorf("decode invoice: %w", err)
	}
	if invoice.MilliSat == nil {
		return 0, errors.New("invoice carries no amount")
	}
	return int64(*invoice.MilliSat) / 1000, nil
}

func chainParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	}
	return nil, fmt.Errorf("unknown network %q", network)
}
