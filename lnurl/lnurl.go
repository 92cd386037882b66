package lnurl

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sirupsen/logrus"

	"github.com/davidohayon669/ligess/lightning"
	"github.com/davidohayon669/ligess/nostr"
)

const (
	minSendableMsat = 1_000
	maxSendableMsat = 100_000_000
	maxCommentChars = 280
)

// Handler serves the lightning-address pay endpoint. The callback is the
// endpoint itself: a request without an amount returns the pay-request
// document, a request with an amount creates the invoice. Zap requests
// arriving on the nostr query parameter register a pending zap keyed by
// the invoice payment hash.
type Handler struct {
	log      *logrus.Logger
	ln       lightning.Service
	pending  *nostr.PendingZaps
	domain   string
	username string
	zapperPk string
}

func NewHandler(
	log *logrus.Logger,
	ln lightning.Service,
	pending *nostr.PendingZaps,
	domain string,
	username string,
	zapperPk string,
) *Handler {
	return &Handler{
		log:      log,
		ln:       ln,
		pending:  pending,
		domain:   domain,
		username: username,
		zapperPk: zapperPk,
	}
}

type payRequestResponse struct {
	Callback       string `json:"callback"`
	MinSendable    int64  `json:"minSendable"`
	MaxSendable    int64  `json:"maxSendable"`
	Metadata       string `json:"metadata"`
	CommentAllowed int    `json:"commentAllowed"`
	Tag            string `json:"tag"`
	AllowsNostr    bool   `json:"allowsNostr,omitempty"`
	NostrPubkey    string `json:"nostrPubkey,omitempty"`
}

type invoiceResponse struct {
	Pr     string        `json:"pr"`
	Routes []interface{} `json:"routes"`
}

type errorResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if mux.Vars(r)["user"] != h.username {
		http.NotFound(w, r)
		return
	}

	if r.URL.Query().Get("amount") == "" {
		h.servePayRequest(w, r)
		return
	}
	h.serveInvoice(w, r)
}

func (h *Handler) servePayRequest(w http.ResponseWriter, r *http.Request) {
	response := &payRequestResponse{
		Callback:       fmt.Sprintf("https://%s/.well-known/lnurlp/%s", h.domain, h.username),
		MinSendable:    minSendableMsat,
		MaxSendable:    maxSendableMsat,
		Metadata:       h.metadata(),
		CommentAllowed: maxCommentChars,
		Tag:            "payRequest",
	}
	if h.zapperPk != "" {
		response.AllowsNostr = true
		response.NostrPubkey = h.zapperPk
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) serveInvoice(w http.ResponseWriter, r *http.Request) {
	log := h.log.WithField("user", h.username)

	amountParam := r.URL.Query().Get("amount")
	amountMsat, err := strconv.ParseInt(amountParam, 10, 64)
	if err != nil {
		writeError(w, "invalid amount")
		return
	}
	if amountMsat < minSendableMsat || amountMsat > maxSendableMsat {
		writeError(w, "amount out of bounds")
		return
	}

	comment := r.URL.Query().Get("comment")
	if len(comment) > maxCommentChars {
		writeError(w, "comment too long")
		return
	}

	descriptionHash := sha256.Sum256([]byte(h.metadata()))

	zapRequestJSON := r.URL.Query().Get("nostr")
	var zapRequest *goNostr.Event
	if zapRequestJSON != "" && h.zapperPk != "" {
		event, err := nostr.ValidateZapRequest([]byte(zapRequestJSON), amountParam)
		if err != nil {
			log.Warnf("zap request rejected: %v", err)
			writeError(w, err.Error())
			return
		}
		zapRequest = event
		// NIP-57: the invoice commits to the zap request itself
		descriptionHash = sha256.Sum256([]byte(zapRequestJSON))
	}

	invoice, err := h.ln.AddInvoice(r.Context(), amountMsat, descriptionHash[:])
	if err != nil {
		log.Errorf("add invoice: %v", err)
		writeError(w, "unable to create invoice")
		return
	}

	if zapRequest != nil {
		h.pending.Store(invoice.PaymentHash, &nostr.PendingZap{
			Request:     zapRequest,
			RequestJSON: zapRequestJSON,
			Comment:     comment,
			Log:         log,
		})
	}

	writeJSON(w, http.StatusOK, &invoiceResponse{
		Pr:     invoice.Bolt11,
		Routes: []interface{}{},
	})
}

func (h *Handler) metadata() string {
	identifier := fmt.Sprintf("%s@%s", h.username, h.domain)
	return fmt.Sprintf(`[["text/identifier","%s"],["text/plain","Satoshis to %s."]]`, identifier, identifier)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusOK, &errorResponse{Status: "ERROR", Reason: reason})
}
