package mystery

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/flardop/Advanced-Retro-sub001/internal/testutil"
)

// memStore is an in-memory Store with the same guarded updates as the SQL.
type memStore struct {
	testutil.Failures

	mu      sync.Mutex
	boxes   map[string]*Box
	prizes  []*Prize
	tickets []*Ticket
	spins   []*Spin
	clock   time.Time
}

func newMemStore() *memStore {
	return &memStore{
		boxes: map[string]*Box{},
		clock: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func copyPrize(p *Prize) *Prize {
	cp := *p
	if p.Stock != nil {
		v := *p.Stock
		cp.Stock = &v
	}
	return &cp
}

func (m *memStore) Snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	prizes := make([]*Prize, len(m.prizes))
	for i, p := range m.prizes {
		prizes[i] = copyPrize(p)
	}
	tickets := make([]*Ticket, len(m.tickets))
	for i, t := range m.tickets {
		cp := *t
		tickets[i] = &cp
	}
	spins := make([]*Spin, len(m.spins))
	for i, s := range m.spins {
		cp := *s
		spins[i] = &cp
	}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.prizes = prizes
		m.tickets = tickets
		m.spins = spins
	}
}

func (m *memStore) addBox(b *Box) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boxes[b.ID] = b
}

func (m *memStore) addPrize(p *Prize) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	m.prizes = append(m.prizes, p)
}

func (m *memStore) addTicket(userID, boxID string, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets = append(m.tickets, &Ticket{
		ID:            "ticket-" + strconv.Itoa(len(m.tickets)+1),
		UserID:        userID,
		BoxID:         boxID,
		QuantityTotal: quantity,
		Status:        TicketActive,
		CreatedAt:     m.tick(),
	})
}

func (m *memStore) stock(prizeID string) *int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prizes {
		if p.ID == prizeID {
			return copyPrize(p).Stock
		}
	}
	return nil
}

func (m *memStore) ticketsUsed(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := 0
	for _, t := range m.tickets {
		if t.UserID == userID {
			used += t.QuantityUsed
		}
	}
	return used
}

func (m *memStore) spinCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spins)
}

func (m *memStore) GetActiveBox(_ context.Context, boxID string) (*Box, error) {
	if err := m.Err("GetActiveBox"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boxes[boxID]
	if !ok || !b.Active {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) ListActiveBoxes(_ context.Context, limit int) ([]*Box, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Box
	for _, b := range m.boxes {
		if b.Active {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TicketPriceCents != out[j].TicketPriceCents {
			return out[i].TicketPriceCents < out[j].TicketPriceCents
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListActivePrizes(_ context.Context, boxIDs []string) ([]*Prize, error) {
	if err := m.Err("ListActivePrizes"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range boxIDs {
		want[id] = true
	}
	var out []*Prize
	for _, p := range m.prizes {
		if want[p.BoxID] && p.Active {
			out = append(out, copyPrize(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BoxID != out[j].BoxID {
			return out[i].BoxID < out[j].BoxID
		}
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) ConsumeTicket(_ context.Context, userID string, price int64) (*Ticket, error) {
	if err := m.Err("ConsumeTicket"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		b := m.boxes[t.BoxID]
		if t.UserID != userID || t.Status != TicketActive || t.QuantityUsed >= t.QuantityTotal || b == nil || b.TicketPriceCents != price {
			continue
		}
		t.QuantityUsed++
		if t.QuantityUsed >= t.QuantityTotal {
			t.Status = TicketUsed
		}
		t.UpdatedAt = m.tick()
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) AvailableTickets(_ context.Context, userID string) (map[int64]int, error) {
	if err := m.Err("AvailableTickets"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]int{}
	for _, t := range m.tickets {
		if t.UserID == userID && t.Status == TicketActive {
			if b := m.boxes[t.BoxID]; b != nil {
				out[b.TicketPriceCents] += t.Available()
			}
		}
	}
	return out, nil
}

func (m *memStore) DecrementStock(_ context.Context, prizeID string) (bool, error) {
	if err := m.Err("DecrementStock"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prizes {
		if p.ID == prizeID && p.Stock != nil && *p.Stock > 0 {
			*p.Stock--
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertSpin(_ context.Context, s *Spin) error {
	if err := m.Err("InsertSpin"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.CreatedAt = m.tick()
	cp := *s
	m.spins = append(m.spins, &cp)
	return nil
}

func (m *memStore) ListSpins(_ context.Context, userID string, limit int) ([]*Spin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Spin
	for i := len(m.spins) - 1; i >= 0 && len(out) < limit; i-- {
		if m.spins[i].UserID == userID {
			cp := *m.spins[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) GetSpin(_ context.Context, userID, spinID string) (*Spin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.spins {
		if s.ID == spinID && s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) MarkRedeemed(_ context.Context, userID, spinID string, at time.Time) (*Spin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.spins {
		if s.ID == spinID && s.UserID == userID && s.Status == SpinWon && s.RedeemedAt == nil && s.Metadata["prize_type"] == string(PrizePhysical) {
			s.RedeemedAt = &at
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertTicket(_ context.Context, t *Ticket) (bool, error) {
	if err := m.Err("InsertTicket"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.tickets {
		if e.OrderID != nil && t.OrderID != nil && *e.OrderID == *t.OrderID && e.BoxID == t.BoxID {
			return false, nil
		}
	}
	t.CreatedAt = m.tick()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.tickets = append(m.tickets, &cp)
	return true, nil
}
