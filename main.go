package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lightninglabs/lndclient"
	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sirupsen/logrus"

	"github.com/davidohayon669/ligess/config"
	"github.com/davidohayon669/ligess/lightning"
	"github.com/davidohayon669/ligess/lightning/lnd"
	"github.com/davidohayon669/ligess/lnurl"
	"github.com/davidohayon669/ligess/nostr"
	"github.com/davidohayon669/ligess/nwc"
	"github.com/davidohayon669/ligess/server"
)

func main() {
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(err)
	}

	tlsData := ""
	if cfg.LndTLSPath != "" {
		tlsBytes, err := os.ReadFile(cfg.LndTLSPath)
		if err != nil {
			logger.Fatal(err)
		}
		tlsData = string(tlsBytes)
	}

	lnSvc, err := lnd.New(
		cfg.LndAddress,
		cfg.LndGrpcPort,
		cfg.LndMacaroonHex,
		tlsData,
		lndclient.Network(cfg.LndNetwork),
		logger,
	)
	if err != nil {
		logger.Fatal(err)
	}

	pending := nostr.NewPendingZaps()

	zapperPk := ""
	var metadata *goNostr.Event
	if cfg.ZapperPrivateKey != "" {
		zapperPk, err = goNostr.GetPublicKey(cfg.ZapperPrivateKey)
		if err != nil {
			logger.Fatalf("zapper private key: %v", err)
		}
		logger.WithField("npub", nostr.Npub(zapperPk)).Info("Nostr Lightning Zaps (NIP-57) enabled")

		metadata, err = nostr.NewMetadataNote(cfg.ZapperPrivateKey, cfg.MetadataFile)
		if err != nil {
			logger.Fatal(err)
		}
		if metadata != nil {
			logger.WithField("note", nostr.Note(metadata.ID)).Info("Nostr Metadata Kind 0 (NIP-01) enabled")
		}
	}

	publisher := nostr.NewPublisher(logger, metadata)
	zapper := nostr.NewZapper(cfg.ZapperPrivateKey, pending, publisher, logger)
	go zapper.Run(ctx, lnSvc.InvoiceUpdates())

	var sessionCfg nwc.SessionConfig
	var processor nwc.PaymentProcessor
	nwcEnabled := cfg.WalletConnectPrivateKey != ""
	if nwcEnabled {
		walletPk, err := goNostr.GetPublicKey(cfg.WalletConnectPrivateKey)
		if err != nil {
			logger.Fatalf("wallet connect private key: %v", err)
		}
		logger.WithField("npub", nostr.Npub(walletPk)).Info("Nostr Wallet Connect (NIP-47) enabled")
		if cfg.WalletConnectPublicKey != "" {
			logger.WithField("npub", nostr.Npub(cfg.WalletConnectPublicKey)).Info("Nostr Wallet Connect Authentication (NIP-42) enabled")
		}
		logger.Infof(
			"Nostr Wallet Connect budget: max zap %d, hourly: %d, daily: %d",
			cfg.BudgetZap, cfg.BudgetHour, cfg.BudgetDay,
		)

		decoder, err := lightning.NewDecoder(cfg.LndNetwork)
		if err != nil {
			logger.Fatal(err)
		}

		budget, err := nwc.LoadBudget(cfg.ZapsFile, nwc.Caps{
			PerPayment: cfg.BudgetZap,
			Hour:       cfg.BudgetHour,
			Day:        cfg.BudgetDay,
		})
		if err != nil {
			logger.Fatal(err)
		}

		processor = nwc.NewProcessor(
			cfg.WalletConnectPrivateKey,
			walletPk,
			lnSvc,
			decoder,
			budget,
		)
		sessionCfg = nwc.SessionConfig{
			WalletSk:      cfg.WalletConnectPrivateKey,
			WalletPk:      walletPk,
			AuthPk:        cfg.WalletConnectPublicKey,
			RelayHost:     cfg.WalletConnectRelay.Hostname(),
			SkipHostCheck: cfg.ListensOnAllInterfaces(),
		}
	}

	lnurlHandler := lnurl.NewHandler(logger, lnSvc, pending, cfg.Domain, cfg.Username, zapperPk)

	srv, err := server.New(logger, lnurlHandler, cfg.RelayInformationFile, sessionCfg, processor, nwcEnabled)
	if err != nil {
		logger.Fatal(err)
	}

	go func() {
		if err := srv.Run(fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)); err != nil {
			logger.Fatal(err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	cancelCtx()
	logger.Info("bye")
}
