package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stockwallet/backend/internal/domain"
)

// MemoryStore is an in-memory implementation of the same repositories
// the sql stores provide. It backs tests and the server's memory driver.
type MemoryStore struct {
	mu         sync.RWMutex
	seq        int64
	events     []*domain.Event
	portfolios map[string]*domain.Portfolio
	brokers    map[string]*domain.Broker
	bars       map[string][]domain.AssetDay // symbol -> bars sorted by time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		portfolios: make(map[string]*domain.Portfolio),
		brokers:    make(map[string]*domain.Broker),
		bars:       make(map[string][]domain.AssetDay),
	}
}

// EventStore implementation

func (s *MemoryStore) Append(ctx context.Context, ev *domain.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	copied := *ev
	copied.Sequence = s.seq
	s.events = append(s.events, &copied)
	ev.Sequence = s.seq
	return copied.ID, nil
}

func (s *MemoryStore) ListOrdered(ctx context.Context, scope domain.Scope) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Event
	for _, ev := range s.events {
		if ev.Symbol != scope.Symbol {
			continue
		}
		if scope.Portfolio != "" && !ev.AppliesTo(scope.Portfolio) {
			continue
		}
		copied := *ev
		out = append(out, &copied)
	}
	sortEvents(out)
	return out, nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Event, len(s.events))
	for i, ev := range s.events {
		copied := *ev
		out[i] = &copied
	}
	sortEvents(out)
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.events {
		if ev.ID == id {
			copied := *ev
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) Update(ctx context.Context, id string, ev *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.events {
		if existing.ID == id {
			copied := *ev
			copied.ID = id
			copied.Sequence = existing.Sequence // keep the original tie-break
			s.events[i] = &copied
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *MemoryStore) Remove(ctx context.Context, id string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.events {
		if existing.ID == id {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return existing, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) DistinctSymbols(ctx context.Context, portfolioID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := distinctSymbolsFor(s.events, portfolioID)
	sort.Strings(symbols)
	return symbols, nil
}

// PortfolioRepository / BrokerRepository implementation

func (s *MemoryStore) SavePortfolio(ctx context.Context, p *domain.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	s.portfolios[p.ID] = &copied
	return nil
}

func (s *MemoryStore) GetPortfolio(ctx context.Context, id string) (*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.portfolios[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *MemoryStore) ListPortfolios(ctx context.Context) ([]*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Portfolio, 0, len(s.portfolios))
	for _, p := range s.portfolios {
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) DeletePortfolio(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.portfolios[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.portfolios, id)
	return nil
}

func (s *MemoryStore) SaveBroker(ctx context.Context, b *domain.Broker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *b
	s.brokers[b.ID] = &copied
	return nil
}

func (s *MemoryStore) GetBroker(ctx context.Context, id string) (*domain.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.brokers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *MemoryStore) ListBrokers(ctx context.Context) ([]*domain.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Broker, 0, len(s.brokers))
	for _, b := range s.brokers {
		copied := *b
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) DeleteBroker(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brokers[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.brokers, id)
	return nil
}

// ReferenceDirectory implementation

func (s *MemoryStore) PortfolioExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.portfolios[id]
	return ok, nil
}

func (s *MemoryStore) BrokerExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.brokers[id]
	return ok, nil
}

// PriceHistoryStore implementation

func (s *MemoryStore) SaveAssetDays(ctx context.Context, days []domain.AssetDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range days {
		bars := s.bars[d.Symbol]
		replaced := false
		for i := range bars {
			if bars[i].Time.Equal(d.Time) {
				bars[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			bars = append(bars, d)
		}
		sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
		s.bars[d.Symbol] = bars
	}
	return nil
}

func (s *MemoryStore) LastAssetDayBefore(ctx context.Context, symbol string, asOf time.Time) (*domain.AssetDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bars := s.bars[symbol]
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Time.After(asOf) {
			copied := bars[i]
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) LastAssetDay(ctx context.Context, symbol string) (*domain.AssetDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bars := s.bars[symbol]
	if len(bars) == 0 {
		return nil, domain.ErrNotFound
	}
	copied := bars[len(bars)-1]
	return &copied, nil
}

func sortEvents(events []*domain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Time.Equal(events[j].Time) {
			return events[i].Sequence < events[j].Sequence
		}
		return events[i].Time.Before(events[j].Time)
	})
}
