package replay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
	"github.com/pulkyeet/pool-spread-monitor/internal/eth"
)

// Sample is one recorded pool observation. Big integers are stored as
// decimal strings so uint160 prices survive the round trip.
type Sample struct {
	Block        int64  `parquet:"name=block, type=INT64"`
	Pool         string `parquet:"name=pool, type=BYTE_ARRAY, convertedtype=UTF8"`
	SqrtPriceX96 string `parquet:"name=sqrt_price_x96, type=BYTE_ARRAY, convertedtype=UTF8"`
	Tick         int32  `parquet:"name=tick, type=INT32"`
	Liquidity    string `parquet:"name=liquidity, type=BYTE_ARRAY, convertedtype=UTF8"`
	GasPrice     string `parquet:"name=gas_price, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type poolSample struct {
	sqrtPrice *big.Int
	tick      int64
	liquidity *big.Int
}

// Client answers pool reads and fee queries from recorded samples instead of
// a node. It satisfies arbitrage.ChainClient.
type Client struct {
	poolABI abi.ABI
	states  map[uint64]map[common.Address]poolSample
	gas     map[uint64]*big.Int
	blocks  []uint64
}

var _ arbitrage.ChainClient = (*Client)(nil)

// missingError mimics a node rejecting the call, so readers classify it as a
// contract call failure rather than a transport one.
type missingError struct{ msg string }

func (e missingError) Error() string  { return e.msg }
func (e missingError) ErrorCode() int { return -32000 }

// Load reads every row of a parquet file written with the Sample schema.
func Load(path string) (*Client, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Sample), 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]Sample, int(pr.GetNumRows()))
	if len(rows) > 0 {
		if err := pr.Read(&rows); err != nil {
			return nil, fmt.Errorf("read samples: %w", err)
		}
	}
	return New(rows)
}

// New indexes samples by block and pool. Gas price may be empty on all but
// one row of a block.
func New(samples []Sample) (*Client, error) {
	poolABI, err := abi.JSON(strings.NewReader(eth.UniswapV3PoolABI))
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	c := &Client{
		poolABI: poolABI,
		states:  make(map[uint64]map[common.Address]poolSample),
		gas:     make(map[uint64]*big.Int),
	}

	for i, s := range samples {
		if s.Block < 0 {
			return nil, fmt.Errorf("row %d: negative block %d", i, s.Block)
		}
		if !common.IsHexAddress(s.Pool) {
			return nil, fmt.Errorf("row %d: bad pool address %q", i, s.Pool)
		}
		sqrtPrice, ok := new(big.Int).SetString(s.SqrtPriceX96, 10)
		if !ok {
			return nil, fmt.Errorf("row %d: bad sqrt_price_x96 %q", i, s.SqrtPriceX96)
		}
		liquidity := new(big.Int)
		if s.Liquidity != "" {
			if _, ok := liquidity.SetString(s.Liquidity, 10); !ok {
				return nil, fmt.Errorf("row %d: bad liquidity %q", i, s.Liquidity)
			}
		}

		block := uint64(s.Block)
		if c.states[block] == nil {
			c.states[block] = make(map[common.Address]poolSample)
			c.blocks = append(c.blocks, block)
		}
		c.states[block][common.HexToAddress(s.Pool)] = poolSample{
			sqrtPrice: sqrtPrice,
			tick:      int64(s.Tick),
			liquidity: liquidity,
		}

		if s.GasPrice != "" {
			gp, ok := new(big.Int).SetString(s.GasPrice, 10)
			if !ok {
				return nil, fmt.Errorf("row %d: bad gas_price %q", i, s.GasPrice)
			}
			c.gas[block] = gp
		}
	}

	sort.Slice(c.blocks, func(i, j int) bool { return c.blocks[i] < c.blocks[j] })
	return c, nil
}

// Blocks lists recorded blocks in ascending order.
func (c *Client) Blocks() []uint64 {
	out := make([]uint64, len(c.blocks))
	copy(out, c.blocks)
	return out
}

func (c *Client) latest() (uint64, bool) {
	if len(c.blocks) == 0 {
		return 0, false
	}
	return c.blocks[len(c.blocks)-1], true
}

func (c *Client) resolve(blockNumber *big.Int) (uint64, error) {
	if blockNumber == nil {
		b, ok := c.latest()
		if !ok {
			return 0, missingError{msg: "no samples recorded"}
		}
		return b, nil
	}
	if !blockNumber.IsUint64() {
		return 0, missingError{msg: fmt.Sprintf("block %s out of range", blockNumber)}
	}
	return blockNumber.Uint64(), nil
}

// CallContract serves slot0 and liquidity for recorded pools. Anything else
// fails like a revert.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("replay: malformed call")
	}

	block, err := c.resolve(blockNumber)
	if err != nil {
		return nil, err
	}
	state, ok := c.states[block][*msg.To]
	if !ok {
		return nil, missingError{msg: fmt.Sprintf("no sample for %s at block %d", msg.To.Hex(), block)}
	}

	method, err := c.poolABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, missingError{msg: "execution reverted"}
	}

	switch method.Name {
	case "slot0":
		return method.Outputs.Pack(state.sqrtPrice, big.NewInt(state.tick), uint16(0), uint16(0), uint16(0), uint8(0), true)
	case "liquidity":
		return method.Outputs.Pack(state.liquidity)
	default:
		return nil, missingError{msg: fmt.Sprintf("%s not recorded", method.Name)}
	}
}

// SuggestGasPrice returns the gas price recorded at the latest block.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	b, ok := c.latest()
	if !ok {
		return nil, errors.New("replay: no samples recorded")
	}
	gp, ok := c.gas[b]
	if !ok {
		return nil, fmt.Errorf("replay: no gas price at block %d", b)
	}
	return new(big.Int).Set(gp), nil
}

// HeaderByNumber returns a header whose base fee is the recorded gas price.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	block, err := c.resolve(number)
	if err != nil {
		return nil, err
	}
	gp, ok := c.gas[block]
	if !ok {
		return nil, fmt.Errorf("replay: no gas price at block %d", block)
	}
	return &types.Header{
		Number:  new(big.Int).SetUint64(block),
		BaseFee: new(big.Int).Set(gp),
	}, nil
}
