// Command showqr prints the wallet-connect pairing URL and its QR code
// for scanning from a Nostr client.
package main

import (
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	"github.com/mdp/qrterminal/v3"
	goNostr "github.com/nbd-wtf/go-nostr"
)

func main() {
	_ = godotenv.Load()

	sk := os.Getenv("LIGESS_NOSTR_WALLET_CONNECT_PRIVATE_KEY")
	if sk == "" {
		log.Fatal("LIGESS_NOSTR_WALLET_CONNECT_PRIVATE_KEY is required")
	}
	relay := os.Getenv("LIGESS_NOSTR_WALLET_CONNECT_RELAY")
	if relay == "" {
		log.Fatal("LIGESS_NOSTR_WALLET_CONNECT_RELAY is required")
	}

	pk, err := goNostr.GetPublicKey(sk)
	if err != nil {
		log.Fatalf("invalid private key: %v", err)
	}

	connectURL := fmt.Sprintf(
		"nostrwalletconnect://%s?relay=%s&secret=%s",
		pk,
		url.QueryEscape(relay),
		sk,
	)

	fmt.Println(connectURL)
	qrterminal.GenerateWithConfig(connectURL, qrterminal.Config{
		Level:      qrterminal.L,
		Writer:     os.Stdout,
		HalfBlocks: true,
	})
}
