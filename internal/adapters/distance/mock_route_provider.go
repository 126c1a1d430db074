package distance

import (
	"context"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/ports"
	"sync"
	"sync/atomic"
)

type MockPair struct {
	From, To string
	Km       float64
	Minutes  float64
}

// MockRouteProvider answers from a fixed table of pairs. Addresses are
// normalized on both sides so tests can use any spelling. Unknown pairs
// come back as unroutable cells.
type MockRouteProvider struct {
	m     map[domain.RouteKey]ports.RouteCell
	calls atomic.Int64

	mu       sync.Mutex
	err      error
	requests [][2]int
}

func NewMockRouteProvider(pairs []MockPair) *MockRouteProvider {
	m := make(map[domain.RouteKey]ports.RouteCell, len(pairs))
	for _, p := range pairs {
		key := domain.RouteKey{Origin: domain.NormalizeAddress(p.From), Destination: domain.NormalizeAddress(p.To)}
		m[key] = ports.RouteCell{DistanceKm: p.Km, DurationMinutes: p.Minutes, OK: true}
	}
	return &MockRouteProvider{m: m}
}

// Fail makes every following call return err; nil restores normal answers.
func (p *MockRouteProvider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Calls is the number of DistanceMatrix invocations so far.
func (p *MockRouteProvider) Calls() int { return int(p.calls.Load()) }

// Requests lists the (origins, destinations) sizes of every call.
func (p *MockRouteProvider) Requests() [][2]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][2]int, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *MockRouteProvider) DistanceMatrix(ctx context.Context, origins, destinations []string) ([][]ports.RouteCell, error) {
	p.calls.Add(1)

	p.mu.Lock()
	p.requests = append(p.requests, [2]int{len(origins), len(destinations)})
	err := p.err
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]ports.RouteCell, len(origins))
	for i, o := range origins {
		out[i] = make([]ports.RouteCell, len(destinations))
		for j, d := range destinations {
			out[i][j] = p.m[domain.RouteKey{Origin: domain.NormalizeAddress(o), Destination: domain.NormalizeAddress(d)}]
		}
	}
	return out, nil
}
