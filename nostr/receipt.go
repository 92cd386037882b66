package nostr

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	goNostr "github.com/nbd-wtf/go-nostr"

	"github.com/davidohayon669/ligess/lightning"
)

const (
	KindProfileMetadata = 0
	KindZapReceipt      = 9735
)

// NewZapReceipt builds and signs the kind-9735 receipt for a settled
// invoice. The p tag (and e tag, when present) are copied from the zap
// request verbatim.
func NewZapReceipt(
	zapperSk string,
	pending *PendingZap,
	invoice *lightning.InvoiceUpdate,
) (*goNostr.Event, error) {
	content := ""
	if pending.Comment != "" {
		content = pending.Comment
	} else if pending.Request.Content != "" {
		content = pending.Request.Content
	}

	receipt := &goNostr.Event{
		Kind:      KindZapReceipt,
		CreatedAt: goNostr.Timestamp(invoice.SettleDate.Unix()),
		Content:   content,
		Tags:      goNostr.Tags{},
	}

	ptags := FilterTags(pending.Request.Tags, "p")
	if len(ptags) == 0 {
		return nil, errors.New("zap request has no p tag")
	}
	receipt.Tags = append(receipt.Tags, ptags[0])

	if etags := FilterTags(pending.Request.Tags, "e"); len(etags) == 1 {
		receipt.Tags = append(receipt.Tags, etags[0])
	}

	receipt.Tags = append(receipt.Tags,
		goNostr.Tag{"bolt11", invoice.Bolt11},
		goNostr.Tag{"description", pending.RequestJSON},
		goNostr.Tag{"preimage", invoice.Preimage},
	)

	if err := receipt.Sign(zapperSk); err != nil {
		return nil, fmt.Errorf("sign zap receipt: %w", err)
	}

	return receipt, nil
}

// NewMetadataNote loads the kind-0 profile document from file and signs it
// as the zapper identity. An empty path yields no note.
func NewMetadataNote(zapperSk, file string) (*goNostr.Event, error) {
	if file == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("metadata file %s: %w", file, err)
	}

	var content json.RawMessage
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("invalid JSON in metadata file %s: %w", file, err)
	}
	compact, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}

	note := &goNostr.Event{
		Kind:      KindProfileMetadata,
		CreatedAt: goNostr.Now(),
		Tags:      goNostr.Tags{},
		Content:   string(compact),
	}
	if err := note.Sign(zapperSk); err != nil {
		return nil, fmt.Errorf("sign metadata note: %w", err)
	}

	return note, nil
}
