package eth

import (
	"github.com/ethereum/go-ethereum/common"
)

// Token addresses on Arbitrum One
var (
	WETHAddress = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	USDCAddress = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	USDTAddress = common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9")
	WBTCAddress = common.HexToAddress("0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f")
)

const (
	WETHDecimals = 18
	USDCDecimals = 6
	USDTDecimals = 6
	WBTCDecimals = 8
)

// TokenInfo bundles address + decimals for easy lookup
type TokenInfo struct {
	Address  common.Address
	Decimals int
	Symbol   string
}

// KnownTokens is keyed by symbol
var KnownTokens = map[string]TokenInfo{
	"WETH": {WETHAddress, WETHDecimals, "WETH"},
	"USDC": {USDCAddress, USDCDecimals, "USDC"},
	"USDT": {USDTAddress, USDTDecimals, "USDT"},
	"WBTC": {WBTCAddress, WBTCDecimals, "WBTC"},
}

// SymbolFor returns the known symbol for a token address, or its short hex.
func SymbolFor(addr common.Address) string {
	for sym, info := range KnownTokens {
		if info.Address == addr {
			return sym
		}
	}
	return addr.Hex()[:10]
}

// WETH/USDC concentrated liquidity pools. Sushi V3 pools are Uniswap V3 forks
// and share the pool ABI below.
var (
	UniV3WETHUSDC   = common.HexToAddress("0xC6962004f452bE9203591991D15f6b388e09E8D0")
	SushiV3WETHUSDC = common.HexToAddress("0xf3eb87c1f6020982173c908e7eb31aa66c1f0296")
)

// ArbitrumInfuraURL is the endpoint template used when only INFURA_API_KEY is set.
const ArbitrumInfuraURL = "https://arbitrum-mainnet.infura.io/v3/"

// Uniswap V3 pool ABI, state reads only
const UniswapV3PoolABI = `[
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [
			{"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
			{"internalType": "int24", "name": "tick", "type": "int24"},
			{"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
			{"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
			{"internalType": "bool", "name": "unlocked", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "liquidity",
		"outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "token0",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "token1",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "fee",
		"outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "tickSpacing",
		"outputs": [{"internalType": "int24", "name": "", "type": "int24"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const ERC20ABI = `[
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	}
]`
