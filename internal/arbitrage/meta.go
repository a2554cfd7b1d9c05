package arbitrage

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MetaStore caches static pool metadata.
type MetaStore interface {
	Lookup(addr common.Address) (PoolMeta, bool)
	Store(meta PoolMeta) error
}

// MetaResolver loads pool metadata, preferring the store over the chain.
type MetaResolver struct {
	reader *PoolReader
	store  MetaStore
}

// NewMetaResolver accepts a nil store, in which case every call hits the chain.
func NewMetaResolver(reader *PoolReader, store MetaStore) *MetaResolver {
	return &MetaResolver{reader: reader, store: store}
}

func (m *MetaResolver) Resolve(ctx context.Context, pool common.Address) (PoolMeta, bool, error) {
	if m.store != nil {
		if meta, ok := m.store.Lookup(pool); ok {
			return meta, true, nil
		}
	}

	meta, err := m.reader.ReadPoolMeta(ctx, pool)
	if err != nil {
		return PoolMeta{}, false, err
	}

	if m.store != nil {
		if err := m.store.Store(meta); err != nil {
			return meta, false, fmt.Errorf("store pool meta: %w", err)
		}
	}
	return meta, false, nil
}

// ReadPoolMeta reads token pair, fee tier, tick spacing and token decimals.
func (r *PoolReader) ReadPoolMeta(ctx context.Context, pool common.Address) (PoolMeta, error) {
	token0, err := r.readAddress(ctx, pool, "token0")
	if err != nil {
		return PoolMeta{}, err
	}
	token1, err := r.readAddress(ctx, pool, "token1")
	if err != nil {
		return PoolMeta{}, err
	}

	fee, err := r.readSmallInt(ctx, pool, "fee")
	if err != nil {
		return PoolMeta{}, err
	}
	spacing, err := r.readSmallInt(ctx, pool, "tickSpacing")
	if err != nil {
		return PoolMeta{}, err
	}

	dec0, err := r.readDecimals(ctx, token0)
	if err != nil {
		return PoolMeta{}, err
	}
	dec1, err := r.readDecimals(ctx, token1)
	if err != nil {
		return PoolMeta{}, err
	}

	return PoolMeta{
		Address:     pool,
		Token0:      token0,
		Token1:      token1,
		Fee:         uint32(fee),
		TickSpacing: int32(spacing),
		Decimals0:   dec0,
		Decimals1:   dec1,
	}, nil
}

func (r *PoolReader) readAddress(ctx context.Context, pool common.Address, method string) (common.Address, error) {
	out, err := r.call(ctx, r.poolABI, pool, method, nil)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, &ContractCallError{Contract: pool, Method: method, Err: fmt.Errorf("unexpected type %T", out[0])}
	}
	return addr, nil
}

// readSmallInt decodes uint24/int24 outputs, which abi returns as *big.Int
func (r *PoolReader) readSmallInt(ctx context.Context, pool common.Address, method string) (int64, error) {
	out, err := r.call(ctx, r.poolABI, pool, method, nil)
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(*big.Int)
	if !ok || !v.IsInt64() {
		return 0, &ContractCallError{Contract: pool, Method: method, Err: fmt.Errorf("unexpected value %v", out[0])}
	}
	return v.Int64(), nil
}

func (r *PoolReader) readDecimals(ctx context.Context, token common.Address) (int, error) {
	out, err := r.call(ctx, r.erc20ABI, token, "decimals", nil)
	if err != nil {
		return 0, err
	}

	switch v := out[0].(type) {
	case uint8:
		return int(v), nil
	case *big.Int:
		return int(v.Int64()), nil
	default:
		return 0, &ContractCallError{Contract: token, Method: "decimals", Err: fmt.Errorf("unexpected decimals type %T", v)}
	}
}

// CheckSamePair fails unless both pools quote the same token0/token1 in the
// same order, otherwise their raw prices are not comparable.
func CheckSamePair(a, b PoolMeta) error {
	if a.Token0 != b.Token0 || a.Token1 != b.Token1 {
		return configErr("pools",
			"pools trade different pairs: %s has %s/%s, %s has %s/%s",
			a.Address.Hex(), a.Token0.Hex(), a.Token1.Hex(),
			b.Address.Hex(), b.Token0.Hex(), b.Token1.Hex())
	}
	return nil
}
