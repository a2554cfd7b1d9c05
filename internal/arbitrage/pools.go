package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/pulkyeet/pool-spread-monitor/internal/eth"
)

// ChainClient is the read-only chain capability the pipeline needs.
// *eth.Client, *ethclient.Client and the replay client satisfy it.
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

const (
	sqrtPriceBits = 160
	liquidityBits = 128
)

var errEmptyReturn = errors.New("empty return data (no contract at address?)")

// PoolReader reads uniswap v3 pool state through a ChainClient.
type PoolReader struct {
	client   ChainClient
	poolABI  abi.ABI
	erc20ABI abi.ABI
	timeout  time.Duration
}

func NewPoolReader(client ChainClient, timeout time.Duration) (*PoolReader, error) {
	poolABI, err := abi.JSON(strings.NewReader(eth.UniswapV3PoolABI))
	if err != nil {
		return nil, fmt.Errorf("parse pool ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(eth.ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 ABI: %w", err)
	}

	return &PoolReader{
		client:   client,
		poolABI:  poolABI,
		erc20ABI: erc20ABI,
		timeout:  timeout,
	}, nil
}

// ReadPoolState fetches slot0 and liquidity concurrently. blockNum nil reads
// the latest block.
func (r *PoolReader) ReadPoolState(ctx context.Context, pool common.Address, blockNum *big.Int) (*PoolState, error) {
	var (
		sqrtPrice *big.Int
		tick      int32
		liquidity *uint256.Int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sqrtPrice, tick, err = r.readSlot0(gctx, pool, blockNum)
		return err
	})
	g.Go(func() error {
		var err error
		liquidity, err = r.readLiquidity(gctx, pool, blockNum)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &PoolState{
		Address:      pool,
		SqrtPriceX96: sqrtPrice,
		Tick:         tick,
		Liquidity:    liquidity,
		Block:        blockNum,
	}, nil
}

// slot0 returns (sqrtPriceX96, tick, ...); only the first two are used
func (r *PoolReader) readSlot0(ctx context.Context, pool common.Address, blockNum *big.Int) (*big.Int, int32, error) {
	out, err := r.call(ctx, r.poolABI, pool, "slot0", blockNum)
	if err != nil {
		return nil, 0, err
	}
	if len(out) < 2 {
		return nil, 0, &ContractCallError{Contract: pool, Method: "slot0", Err: fmt.Errorf("unexpected field count: %d", len(out))}
	}

	sqrtPrice, ok := out[0].(*big.Int)
	if !ok {
		return nil, 0, &ContractCallError{Contract: pool, Method: "slot0", Err: fmt.Errorf("sqrtPriceX96 has type %T", out[0])}
	}
	if sqrtPrice.Sign() < 0 || sqrtPrice.BitLen() > sqrtPriceBits {
		return nil, 0, &ContractCallError{Contract: pool, Method: "slot0", Err: fmt.Errorf("sqrtPriceX96 out of uint160 range: %s", sqrtPrice)}
	}

	tickBI, ok := out[1].(*big.Int)
	if !ok {
		return nil, 0, &ContractCallError{Contract: pool, Method: "slot0", Err: fmt.Errorf("tick has type %T", out[1])}
	}
	if !tickBI.IsInt64() || tickBI.Int64() > 1<<23-1 || tickBI.Int64() < -(1<<23) {
		return nil, 0, &ContractCallError{Contract: pool, Method: "slot0", Err: fmt.Errorf("tick out of int24 range: %s", tickBI)}
	}

	return sqrtPrice, int32(tickBI.Int64()), nil
}

func (r *PoolReader) readLiquidity(ctx context.Context, pool common.Address, blockNum *big.Int) (*uint256.Int, error) {
	out, err := r.call(ctx, r.poolABI, pool, "liquidity", blockNum)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, &ContractCallError{Contract: pool, Method: "liquidity", Err: fmt.Errorf("unexpected field count: %d", len(out))}
	}

	raw, ok := out[0].(*big.Int)
	if !ok {
		return nil, &ContractCallError{Contract: pool, Method: "liquidity", Err: fmt.Errorf("liquidity has type %T", out[0])}
	}
	liquidity, overflow := uint256.FromBig(raw)
	if overflow || raw.Sign() < 0 || liquidity.BitLen() > liquidityBits {
		return nil, &ContractCallError{Contract: pool, Method: "liquidity", Err: fmt.Errorf("liquidity out of uint128 range: %s", raw)}
	}

	return liquidity, nil
}

// call packs, executes and unpacks a no-argument view function under the
// read timeout.
func (r *PoolReader) call(ctx context.Context, contractABI abi.ABI, contract common.Address, method string, blockNum *big.Int) ([]interface{}, error) {
	data, err := contractABI.Pack(method)
	if err != nil {
		return nil, &ContractCallError{Contract: contract, Method: method, Err: fmt.Errorf("pack: %w", err)}
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err := r.client.CallContract(callCtx, ethereum.CallMsg{To: &contract, Data: data}, blockNum)
	if err != nil {
		return nil, classifyCallError(contract, method, err)
	}
	if len(result) == 0 {
		return nil, &ContractCallError{Contract: contract, Method: method, Err: errEmptyReturn}
	}

	out, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, &ContractCallError{Contract: contract, Method: method, Err: fmt.Errorf("unpack: %w", err)}
	}
	return out, nil
}
