package device

import "sync"

// DefaultPoolBudget bounds raw sample buffering at 16 MiB.
const DefaultPoolBudget = 16 << 20

// PoolStats is a snapshot of pool occupancy for diagnostics.
type PoolStats struct {
	UsageBytes  int `json:"usage_bytes"`
	BudgetBytes int `json:"budget_bytes"`
	Buffers     int `json:"buffers"`
	Evictions   int `json:"evictions"`
}

// SampleBufferPool is a bounded FIFO of raw receive buffers. Appending past
// the budget evicts oldest buffers until usage drops to half the budget, so
// memory stays bounded even with no consumer backpressure.
type SampleBufferPool struct {
	mu        sync.Mutex
	bufs      [][]byte
	usage     int
	budget    int
	evictions int
}

func NewSampleBufferPool(budget int) *SampleBufferPool {
	if budget <= 0 {
		budget = DefaultPoolBudget
	}
	return &SampleBufferPool{budget: budget}
}

func (p *SampleBufferPool) Append(buf []byte) {
	p.mu.Lock()
	p.bufs = append(p.bufs, buf)
	p.usage += len(buf)
	if p.usage > p.budget {
		target := p.budget / 2
		for len(p.bufs) > 0 && p.usage > target {
			p.usage -= len(p.bufs[0])
			p.bufs[0] = nil
			p.bufs = p.bufs[1:]
			p.evictions++
		}
	}
	p.mu.Unlock()
}

// Pop removes and returns the oldest buffer.
func (p *SampleBufferPool) Pop() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.bufs) == 0 {
		return nil, false
	}
	buf := p.bufs[0]
	p.bufs[0] = nil
	p.bufs = p.bufs[1:]
	p.usage -= len(buf)
	return buf, true
}

func (p *SampleBufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		UsageBytes:  p.usage,
		BudgetBytes: p.budget,
		Buffers:     len(p.bufs),
		Evictions:   p.evictions,
	}
}
