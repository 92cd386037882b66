package nwc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	windowHour = time.Hour
	windowDay  = 24 * time.Hour
)

var (
	ErrAmountTooLarge = errors.New("zap amount too large")
	ErrOverDayBudget  = errors.New("zap amount over day budget")
	ErrOverHourBudget = errors.New("zap amount over hour budget")
)

// SpendRecord is one accepted payment. Timestamps are unix milliseconds,
// matching the persisted ledger format.
type SpendRecord struct {
	Timestamp int64 `json:"timestamp"`
	Amount    int64 `json:"amount"`
}

type Caps struct {
	PerPayment int64
	Hour       int64
	Day        int64
}

// Reservation is budget held for a payment in flight. It must be either
// committed or released.
type Reservation struct {
	amount int64
}

// Budget enforces the rolling 1h/24h spend caps. The check-and-hold in
// Reserve runs under one lock so concurrent payments can never jointly
// exceed a cap. The ledger is rewritten in full to disk on every commit.
type Budget struct {
	mu       sync.Mutex
	path     string
	caps     Caps
	records  []SpendRecord
	reserved []*Reservation
	now      func() time.Time
}

// LoadBudget reads the spend ledger from path, pruning anything older
// than the day window. A missing file starts an empty ledger.
func LoadBudget(path string, caps Caps) (*Budget, error) {
	b := &Budget{
		path: path,
		caps: caps,
		now:  time.Now,
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read spend ledger %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, &b.records); err != nil {
		return nil, fmt.Errorf("invalid spend ledger %s: %w", path, err)
	}
	b.records = recordsSince(b.records, b.now().Add(-windowDay).UnixMilli())

	return b, nil
}

// Reserve atomically checks the per-payment, daily and hourly caps and
// holds the amount against them.
func (b *Budget) Reserve(amount int64) (*Reservation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if amount > b.caps.PerPayment {
		return nil, ErrAmountTooLarge
	}

	now := b.now()
	b.records = recordsSince(b.records, now.Add(-windowDay).UnixMilli())

	held := int64(0)
	for _, r := range b.reserved {
		held += r.amount
	}

	spentDay := sumAmount(b.records) + held
	if spentDay+amount > b.caps.Day {
		return nil, ErrOverDayBudget
	}

	spentHour := sumAmount(recordsSince(b.records, now.Add(-windowHour).UnixMilli())) + held
	if spentHour+amount > b.caps.Hour {
		return nil, ErrOverHourBudget
	}

	res := &Reservation{amount: amount}
	b.reserved = append(b.reserved, res)

	return res, nil
}

// Commit records a completed payment and persists the full ledger.
func (b *Budget) Commit(res *Reservation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dropReservation(res)
	b.records = append(b.records, SpendRecord{
		Timestamp: b.now().UnixMilli(),
		Amount:    res.amount,
	})

	raw, err := json.Marshal(b.records)
	if err != nil {
		return err
	}
	if err := os.WriteFile(b.path, raw, 0600); err != nil {
		return fmt.Errorf("persist spend ledger: %w", err)
	}

	return nil
}

// Release gives reserved budget back after a failed payment.
func (b *Budget) Release(res *Reservation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropReservation(res)
}

// SpentHour reports the trailing one-hour spend.
func (b *Budget) SpentHour() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sumAmount(recordsSince(b.records, b.now().Add(-windowHour).UnixMilli()))
}

// SpentDay reports the trailing 24-hour spend.
func (b *Budget) SpentDay() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sumAmount(recordsSince(b.records, b.now().Add(-windowDay).UnixMilli()))
}

func (b *Budget) dropReservation(res *Reservation) {
	for i := range b.reserved {
		if b.reserved[i] == res {
			b.reserved = append(b.reserved[:i], b.reserved[i+1:]...)
			return
		}
	}
}

func recordsSince(records []SpendRecord, cutoffMilli int64) []SpendRecord {
	kept := make([]SpendRecord, 0, len(records))
	for _, r := range records {
		if r.Timestamp > cutoffMilli {
			kept = append(kept, r)
		}
	}
	return kept
}

func sumAmount(records []SpendRecord) int64 {
	total := int64(0)
	for _, r := range records {
		total += r.Amount
	}
	return total
}
