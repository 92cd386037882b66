package nwc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sirupsen/logrus"

	"github.com/davidohayon669/ligess/nostr"
)

const DefaultAuthTimeout = 10 * time.Second

// Transport is the outbound half of a wallet-connect connection. It keeps
// the session testable without a real websocket.
type Transport interface {
	Send(frame []byte) error
	Close() error
}

type SessionConfig struct {
	WalletSk string
	WalletPk string
	// Optional client-authentication pubkey. When empty only the wallet
	// key may authenticate.
	AuthPk string
	// Hostname the relay tag of an auth response must match.
	RelayHost     string
	SkipHostCheck bool
	AuthTimeout   time.Duration
}

// Session is the per-connection state machine: a challenge is issued on
// start, a payment request may arrive before authentication and is held,
// and processing fires exactly once when both are in place.
type Session struct {
	cfg       SessionConfig
	transport Transport
	processor PaymentProcessor
	log       *logrus.Entry
	challenge string
	now       func() time.Time

	mu            sync.Mutex
	authenticated bool
	held          *goNostr.Event
	closed        bool
	authTimer     *time.Timer
}

func NewSession(
	cfg SessionConfig,
	transport Transport,
	processor PaymentProcessor,
	log *logrus.Entry,
) *Session {
	if cfg.AuthTimeout == 0 {
		cfg.AuthTimeout = DefaultAuthTimeout
	}

	return &Session{
		cfg:       cfg,
		transport: transport,
		processor: processor,
		log:       log,
		challenge: randomChallenge(),
		now:       time.Now,
	}
}

// Start issues the challenge and arms the idle-auth timer. A connection
// still unauthenticated when the timer fires is closed.
func (s *Session) Start() error {
	s.mu.Lock()
	s.authTimer = time.AfterFunc(s.cfg.AuthTimeout, s.closeIfUnauthenticated)
	s.mu.Unlock()

	return s.sendFrame("AUTH", s.challenge)
}

// Handle processes one inbound frame. A non-nil error means the message
// was malformed or failed verification; the caller must close the
// connection, no partial-trust state survives.
func (s *Session) Handle(ctx context.Context, data []byte) error {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) == 0 {
		return s.fail(fmt.Errorf("invalid JSON frame"))
	}

	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil {
		return s.fail(fmt.Errorf("invalid frame label"))
	}

	switch label {
	case "REQ":
		if err := s.handleReq(frame); err != nil {
			return s.fail(err)
		}
	case "EVENT":
		if err := s.handlePaymentRequest(ctx, frame); err != nil {
			return s.fail(err)
		}
	case "AUTH":
		if err := s.handleAuth(ctx, frame); err != nil {
			return s.fail(err)
		}
	}

	return nil
}

// handleReq answers a capability subscription: requests naming kind 13194
// get a freshly signed wallet-info event, and every subscription gets an
// end-of-stored-events marker. Authentication is not required.
func (s *Session) handleReq(frame []json.RawMessage) error {
	if len(frame) < 3 {
		return fmt.Errorf("invalid REQ frame")
	}

	var subID string
	if err := json.Unmarshal(frame[1], &subID); err != nil {
		return fmt.Errorf("invalid subscription id")
	}
	var filter goNostr.Filter
	if err := json.Unmarshal(frame[2], &filter); err != nil {
		return fmt.Errorf("invalid filter")
	}

	if containsKind(filter.Kinds, KindWalletInfo) {
		info := &goNostr.Event{
			PubKey:    s.cfg.WalletPk,
			Kind:      KindWalletInfo,
			CreatedAt: goNostr.Timestamp(s.now().Unix()),
			Tags:      goNostr.Tags{},
			Content:   "pay_invoice",
		}
		if err := info.Sign(s.cfg.WalletSk); err != nil {
			return fmt.Errorf("sign wallet info: %w", err)
		}
		if err := s.sendFrame("EVENT", subID, info); err != nil {
			return err
		}
	}

	return s.sendFrame("EOSE", subID)
}

func (s *Session) handlePaymentRequest(ctx context.Context, frame []json.RawMessage) error {
	if len(frame) < 2 {
		return fmt.Errorf("invalid EVENT frame")
	}

	event := &goNostr.Event{}
	if err := json.Unmarshal(frame[1], event); err != nil {
		return fmt.Errorf("invalid event")
	}

	if err := VerifyPaymentRequest(event, s.cfg.WalletPk, s.now()); err != nil {
		return err
	}

	s.mu.Lock()
	s.held = event
	s.mu.Unlock()

	return s.attemptProgress(ctx)
}

func (s *Session) handleAuth(ctx context.Context, frame []json.RawMessage) error {
	if len(frame) < 2 {
		return fmt.Errorf("invalid AUTH frame")
	}

	event := &goNostr.Event{}
	if err := json.Unmarshal(frame[1], event); err != nil {
		return fmt.Errorf("invalid auth event")
	}

	authPk, err := VerifyAuthResponse(
		event,
		s.challenge,
		s.cfg.RelayHost,
		s.cfg.SkipHostCheck,
		s.cfg.WalletPk,
		s.cfg.AuthPk,
		s.now(),
	)
	if err != nil {
		return err
	}

	s.mu.Lock()
	first := !s.authenticated
	s.authenticated = true
	s.mu.Unlock()

	if first {
		s.log.Infof("Connection is authenticated: %s", nostr.Npub(authPk))
	}

	return s.attemptProgress(ctx)
}

// attemptProgress processes the held payment request exactly once, and
// only when the session is authenticated. A request arriving before
// authentication is deferred, not dropped.
func (s *Session) attemptProgress(ctx context.Context) error {
	s.mu.Lock()
	if !s.authenticated || s.held == nil {
		s.mu.Unlock()
		return nil
	}
	request := s.held
	s.held = nil
	s.mu.Unlock()

	response := s.processor.Process(ctx, request, s.log)

	return s.sendFrame("EVENT", response)
}

// HandleClose logs abnormal peer closes.
func (s *Session) HandleClose(code int, reason string) {
	if code != 1000 {
		s.log.WithFields(logrus.Fields{
			"code":   code,
			"reason": reason,
		}).Info("Connection closed")
	}
}

// Teardown disarms the idle-auth timer and discards any held request.
// Safe to call more than once.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.held = nil
	if s.authTimer != nil {
		s.authTimer.Stop()
	}
}

func (s *Session) closeIfUnauthenticated() {
	s.mu.Lock()
	idle := !s.authenticated && !s.closed
	s.mu.Unlock()

	if idle {
		s.log.Info("Closing idle connection")
		s.transport.Close()
	}
}

func (s *Session) fail(err error) error {
	s.log.WithField("error", err.Error()).Warn("closing connection")
	return err
}

func (s *Session) sendFrame(parts ...interface{}) error {
	frame, err := json.Marshal(parts)
	if err != nil {
		return err
	}
	return s.transport.Send(frame)
}

func containsKind(kinds []int, kind int) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func randomChallenge() string {
	buf := make([]byte, 20)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
