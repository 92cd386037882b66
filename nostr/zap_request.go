package nostr

import (
	"encoding/json"
	"errors"
	"fmt"

	goNostr "github.com/nbd-wtf/go-nostr"
)

const KindZapRequest = 9734

// ValidateZapRequest parses and validates a NIP-57 zap request. The rules
// run in a fixed order and the first violation wins. expectedAmount is the
// millisatoshi amount from the pay request query; when both it and an
// amount tag are present they must match exactly.
func ValidateZapRequest(raw []byte, expectedAmount string) (*goNostr.Event, error) {
	event := &goNostr.Event{}
	if err := json.Unmarshal(raw, event); err != nil {
		return nil, errors.New("invalid JSON on zap request")
	}

	if event.Kind != KindZapRequest {
		return nil, fmt.Errorf("invalid zap request kind %d", event.Kind)
	}

	if event.GetID() != event.ID {
		return nil, errors.New("invalid id on zap request")
	}
	if ok, err := event.CheckSignature(); err != nil || !ok {
		return nil, errors.New("invalid signature in zap request")
	}

	if len(event.Tags) == 0 {
		return nil, errors.New("no tags on zap request")
	}

	ptags := FilterTags(event.Tags, "p")
	if len(ptags) == 0 {
		return nil, errors.New("no p tag on zap request")
	}
	if len(ptags) >= 2 {
		return nil, errors.New("multiple p tags on zap request")
	}

	if etags := FilterTags(event.Tags, "e"); len(etags) >= 2 {
		return nil, errors.New("multiple e tags on zap request")
	}

	relayTags := FilterTags(event.Tags, "relays")
	if len(relayTags) == 0 {
		return nil, errors.New("no relays tag on zap request")
	}
	if len(relayTags) >= 2 {
		return nil, errors.New("multiple relays tags on zap request")
	}

	amountTags := FilterTags(event.Tags, "amount")
	if len(amountTags) == 1 && expectedAmount != "" && amountTags[0][1] != expectedAmount {
		return nil, errors.New("amount tag in the zap request does not equal amount on query")
	}
	if len(amountTags) >= 2 {
		return nil, errors.New("multiple amount tags on zap request")
	}

	return event, nil
}

// ZapRequestRelays lists the relay URLs the receipt should be delivered to.
func ZapRequestRelays(event *goNostr.Event) []string {
	relayTags := FilterTags(event.Tags, "relays")
	if len(relayTags) == 0 {
		return nil
	}
	return relayTags[0][1:]
}
