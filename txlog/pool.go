package txlog

import "sync"

// Pool holds pending (not-yet-appended) transactions in FIFO order,
// evicting the oldest entry once maxSize is reached.
type Pool struct {
	mu      sync.Mutex
	pending map[TxRef]*Transaction
	order   []TxRef
	maxSize int
}

func NewPool(maxSize int) *Pool {
	return &Pool{pending: make(map[TxRef]*Transaction), maxSize: maxSize}
}

func (p *Pool) Add(tx *Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) >= p.maxSize && len(p.order) > 0 {
		oldest := p.order[0]
		p.order = p.order[1:]
		delete(p.pending, oldest)
	}
	p.pending[tx.TxID] = tx
	p.order = append(p.order, tx.TxID)
}

func (p *Pool) Get(ref TxRef) (*Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, ok := p.pending[ref]
	return tx, ok
}

func (p *Pool) Remove(ref TxRef) (*Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, ok := p.pending[ref]
	if !ok {
		return nil, false
	}
	delete(p.pending, ref)
	for i, r := range p.order {
		if r == ref {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return tx, true
}

func (p *Pool) All() []*Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Transaction, 0, len(p.order))
	for _, ref := range p.order {
		if tx, ok := p.pending[ref]; ok {
			out = append(out, tx)
		}
	}
	return out
}

func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = make(map[TxRef]*Transaction)
	p.order = nil
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Pool) IsFull() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) >= p.maxSize
}
