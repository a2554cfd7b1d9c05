package storage

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
)

//go:embed schema.sql
var schema string

// PoolMetaDB persists static pool metadata between runs. Prices never go in
// here.
type PoolMetaDB struct {
	db *sql.DB
}

func NewPoolMetaDB(dbPath string) (*PoolMetaDB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &PoolMetaDB{db: db}, nil
}

func (c *PoolMetaDB) Close() error {
	return c.db.Close()
}

func (c *PoolMetaDB) Get(addr common.Address) (arbitrage.PoolMeta, bool, error) {
	var (
		token0, token1 string
		meta           = arbitrage.PoolMeta{Address: addr}
	)
	err := c.db.QueryRow(
		"SELECT token0, token1, fee, tick_spacing, decimals0, decimals1 FROM pool_meta WHERE address = ?",
		addr.Hex(),
	).Scan(&token0, &token1, &meta.Fee, &meta.TickSpacing, &meta.Decimals0, &meta.Decimals1)

	if errors.Is(err, sql.ErrNoRows) {
		return arbitrage.PoolMeta{}, false, nil
	}
	if err != nil {
		return arbitrage.PoolMeta{}, false, fmt.Errorf("query pool meta %s: %w", addr.Hex(), err)
	}

	meta.Token0 = common.HexToAddress(token0)
	meta.Token1 = common.HexToAddress(token1)
	return meta, true, nil
}

func (c *PoolMetaDB) Put(meta arbitrage.PoolMeta) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO pool_meta
		(address, token0, token1, fee, tick_spacing, decimals0, decimals1, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.Address.Hex(), meta.Token0.Hex(), meta.Token1.Hex(),
		meta.Fee, meta.TickSpacing, meta.Decimals0, meta.Decimals1,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store pool meta %s: %w", meta.Address.Hex(), err)
	}
	return nil
}

// Stats reports row counts for the startup log.
func (c *PoolMetaDB) Stats() (map[string]int64, error) {
	stats := make(map[string]int64)

	var count int64
	if err := c.db.QueryRow("SELECT COUNT(*) FROM pool_meta").Scan(&count); err != nil {
		return nil, err
	}
	stats["pool_meta_entries"] = count

	return stats, nil
}
