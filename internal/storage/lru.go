package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
)

// PoolCache fronts an optional PoolMetaDB with an in-memory LRU. It
// satisfies arbitrage.MetaStore.
type PoolCache struct {
	mem *lru.Cache[common.Address, arbitrage.PoolMeta]
	db  *PoolMetaDB
}

var _ arbitrage.MetaStore = (*PoolCache)(nil)

// NewPoolCache accepts a nil db for a memory-only cache.
func NewPoolCache(size int, db *PoolMetaDB) (*PoolCache, error) {
	mem, err := lru.New[common.Address, arbitrage.PoolMeta](size)
	if err != nil {
		return nil, fmt.Errorf("pool cache: %w", err)
	}
	return &PoolCache{mem: mem, db: db}, nil
}

func (p *PoolCache) Lookup(addr common.Address) (arbitrage.PoolMeta, bool) {
	if meta, ok := p.mem.Get(addr); ok {
		return meta, true
	}
	if p.db == nil {
		return arbitrage.PoolMeta{}, false
	}

	// a broken db degrades to a cache miss; the chain is the source of truth
	meta, ok, err := p.db.Get(addr)
	if err != nil || !ok {
		return arbitrage.PoolMeta{}, false
	}
	p.mem.Add(addr, meta)
	return meta, true
}

func (p *PoolCache) Store(meta arbitrage.PoolMeta) error {
	p.mem.Add(meta.Address, meta)
	if p.db == nil {
		return nil
	}
	return p.db.Put(meta)
}

func (p *PoolCache) Len() int { return p.mem.Len() }
