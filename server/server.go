package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/davidohayon669/ligess/lnurl"
	"github.com/davidohayon669/ligess/nwc"
)

// Server routes the lightning-address endpoint, the NIP-11 relay
// information document and the wallet-connect websocket. Each inbound
// connection runs on its own goroutine; all shared state lives in the
// injected ledgers.
type Server struct {
	log        *logrus.Logger
	router     *mux.Router
	upgrader   websocket.Upgrader
	relayInfo  []byte
	sessionCfg nwc.SessionConfig
	processor  nwc.PaymentProcessor
	nwcEnabled bool
}

func New(
	log *logrus.Logger,
	lnurlHandler *lnurl.Handler,
	relayInfoFile string,
	sessionCfg nwc.SessionConfig,
	processor nwc.PaymentProcessor,
	nwcEnabled bool,
) (*Server, error) {
	s := &Server{
		log:        log,
		router:     mux.NewRouter(),
		sessionCfg: sessionCfg,
		processor:  processor,
		nwcEnabled: nwcEnabled,
	}

	if relayInfoFile != "" {
		raw, err := os.ReadFile(relayInfoFile)
		if err != nil {
			return nil, fmt.Errorf("relay information file %s: %w", relayInfoFile, err)
		}
		var doc json.RawMessage
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON in relay information file %s: %w", relayInfoFile, err)
		}
		s.relayInfo = raw
		log.Info("Nostr Wallet Connect Relay Information (NIP-11) enabled")
	}

	s.router.HandleFunc("/.well-known/lnurlp/{user}", lnurlHandler.ServeHTTP).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleRoot)

	return s, nil
}

func (s *Server) Run(addr string) error {
	s.log.Infof("listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.nwcEnabled && websocket.IsWebSocketUpgrade(r) {
		s.handleWalletConnect(w, r)
		return
	}

	if s.relayInfo == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/nostr+json")
	w.Write(s.relayInfo)
}

func (s *Server) handleWalletConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	log := s.log.WithField("remote", r.RemoteAddr)
	session := nwc.NewSession(s.sessionCfg, &wsTransport{conn: conn}, s.processor, log)
	defer session.Teardown()

	if err := session.Start(); err != nil {
		log.Warnf("start session: %v", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				session.HandleClose(closeErr.Code, closeErr.Text)
			}
			return
		}

		if err := session.Handle(r.Context(), data); err != nil {
			return
		}
	}
}

// wsTransport serializes writes; the session's auth timer may close the
// socket from another goroutine.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
