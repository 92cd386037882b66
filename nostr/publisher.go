package nostr

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sirupsen/logrus"
)

const ackTimeout = 5 * time.Second

// Publisher delivers receipts to relays over transient connections, one
// socket per attempt, no pooling and no retries. The wallet's metadata
// note is pushed at most once per relay for the process lifetime.
type Publisher struct {
	log      *logrus.Logger
	metadata *goNostr.Event
	dialer   *websocket.Dialer

	mu           sync.Mutex
	sentMetadata map[string]bool
}

func NewPublisher(log *logrus.Logger, metadata *goNostr.Event) *Publisher {
	return &Publisher{
		log:          log,
		metadata:     metadata,
		dialer:       websocket.DefaultDialer,
		sentMetadata: make(map[string]bool),
	}
}

// Publish sends the note to one relay, best effort. The socket lives
// until the relay acknowledges the note or 5s elapse, whichever first.
// Failures are logged and never propagate.
func (p *Publisher) Publish(relayURL string, note *goNostr.Event, log *logrus.Entry) {
	log = log.WithField("relay", relayURL)

	conn, _, err := p.dialer.Dial(relayURL, nil)
	if err != nil {
		log.Warnf("relay connect: %v", err)
		return
	}
	defer conn.Close()

	if p.metadata != nil && !p.metadataSent(relayURL) {
		if err := writeEventFrame(conn, p.metadata); err != nil {
			log.Warnf("send metadata note: %v", err)
			return
		}
		p.markMetadataSent(relayURL)
	}

	if err := writeEventFrame(conn, note); err != nil {
		log.Warnf("send note: %v", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(ackTimeout))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			p.logReadError(err, log)
			return
		}

		var frame []json.RawMessage
		if err := json.Unmarshal(message, &frame); err != nil || len(frame) < 2 {
			continue
		}
		var label string
		if err := json.Unmarshal(frame[0], &label); err != nil {
			continue
		}

		switch label {
		case "NOTICE":
			var notice string
			if err := json.Unmarshal(frame[1], &notice); err == nil {
				log.WithField("notice", notice).Info("relay notice")
			}
		case "OK":
			var id string
			if err := json.Unmarshal(frame[1], &id); err != nil {
				continue
			}
			if p.metadata != nil && id == p.metadata.ID {
				log.WithField("id", Note(id)).Info("Metadata note sent")
			}
			if id == note.ID {
				log.WithField("id", Note(id)).Info("Zap note sent")
				return
			}
		}
	}
}

func (p *Publisher) logReadError(err error, log *logrus.Entry) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code != websocket.CloseNormalClosure && closeErr.Code != websocket.CloseNoStatusReceived {
			log.WithFields(logrus.Fields{
				"code":   closeErr.Code,
				"reason": closeErr.Text,
			}).Info("Close")
		}
		return
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		// ack deadline elapsed, socket is done either way
		return
	}

	log.Warnf("relay read: %v", err)
}

func (p *Publisher) metadataSent(relayURL string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sentMetadata[relayURL]
}

func (p *Publisher) markMetadataSent(relayURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sentMetadata[relayURL] = true
}

func writeEventFrame(conn *websocket.Conn, event *goNostr.Event) error {
	frame, err := json.Marshal([]interface{}{"EVENT", event})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}
