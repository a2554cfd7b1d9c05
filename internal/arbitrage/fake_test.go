package arbitrage

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/pulkyeet/pool-spread-monitor/internal/eth"
)

var (
	testPoolA  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testPoolB  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	testToken0 = common.HexToAddress("0x0000000000000000000000000000000000000010")
	testToken1 = common.HexToAddress("0x0000000000000000000000000000000000000011")
)

// q96 is 2^96, the sqrtPriceX96 of a 1.0 price
func q96() *big.Int { return new(big.Int).Lsh(big.NewInt(1), 96) }

type response struct {
	data []byte
	err  error
}

// revertError mimics a JSON-RPC error object returned by the node
type revertError struct{ msg string }

func (e revertError) Error() string  { return e.msg }
func (e revertError) ErrorCode() int { return 3 }

type fakeChain struct {
	mu        sync.Mutex
	poolABI   abi.ABI
	erc20ABI  abi.ABI
	responses map[common.Address]map[string]response
	gasPrice  *big.Int
	gasErr    error
	baseFee   *big.Int
	delay     time.Duration
	calls     int
}

func newFakeChain(t *testing.T) *fakeChain {
	t.Helper()
	poolABI, err := abi.JSON(strings.NewReader(eth.UniswapV3PoolABI))
	require.NoError(t, err)
	erc20ABI, err := abi.JSON(strings.NewReader(eth.ERC20ABI))
	require.NoError(t, err)

	return &fakeChain{
		poolABI:   poolABI,
		erc20ABI:  erc20ABI,
		responses: make(map[common.Address]map[string]response),
		gasPrice:  big.NewInt(0),
	}
}

func (f *fakeChain) set(addr common.Address, method string, r response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.responses[addr] == nil {
		f.responses[addr] = make(map[string]response)
	}
	f.responses[addr][method] = r
}

func (f *fakeChain) setPool(t *testing.T, pool common.Address, sqrtPrice *big.Int, tick int64, liquidity *big.Int) {
	t.Helper()
	slot0, err := f.poolABI.Methods["slot0"].Outputs.Pack(
		sqrtPrice, big.NewInt(tick), uint16(1), uint16(10), uint16(10), uint8(0), true,
	)
	require.NoError(t, err)
	f.set(pool, "slot0", response{data: slot0})

	liq, err := f.poolABI.Methods["liquidity"].Outputs.Pack(liquidity)
	require.NoError(t, err)
	f.set(pool, "liquidity", response{data: liq})
}

func (f *fakeChain) setMeta(t *testing.T, pool, token0, token1 common.Address, fee, spacing int64) {
	t.Helper()
	pack := func(method string, v interface{}) {
		data, err := f.poolABI.Methods[method].Outputs.Pack(v)
		require.NoError(t, err)
		f.set(pool, method, response{data: data})
	}
	pack("token0", token0)
	pack("token1", token1)
	pack("fee", big.NewInt(fee))
	pack("tickSpacing", big.NewInt(spacing))
}

func (f *fakeChain) setDecimals(t *testing.T, token common.Address, decimals uint8) {
	t.Helper()
	data, err := f.erc20ABI.Methods["decimals"].Outputs.Pack(decimals)
	require.NoError(t, err)
	f.set(token, "decimals", response{data: data})
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("bad call")
	}
	method, err := f.poolABI.MethodById(msg.Data[:4])
	if err != nil {
		method, err = f.erc20ABI.MethodById(msg.Data[:4])
		if err != nil {
			return nil, revertError{msg: "execution reverted"}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.responses[*msg.To][method.Name]
	if !ok {
		return nil, nil
	}
	return r.data, r.err
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gasErr != nil {
		return nil, f.gasErr
	}
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gasErr != nil {
		return nil, f.gasErr
	}
	return &types.Header{Number: number, BaseFee: f.baseFee}, nil
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), PriceScale)
}
