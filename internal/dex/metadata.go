package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dynamicFee/internal/model"
)

// ChainReader is the part of chain.Client that pool metadata lookups need.
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// PoolMetaCache caches pool metadata by address.
type PoolMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.PoolMeta
}

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{data: make(map[common.Address]model.PoolMeta)}
}

func (c *PoolMetaCache) Get(address common.Address) (model.PoolMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *PoolMetaCache) Set(address common.Address, meta model.PoolMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// FetchPoolMeta reads the pool's token pair, fee tier and tick spacing, then
// the decimals of both tokens. A failed decimals call leaves that side nil so
// the replay falls back to its own lookup or default.
func FetchPoolMeta(ctx context.Context, reader ChainReader, pool common.Address, logger *zap.Logger) (model.PoolMeta, error) {
	if reader == nil {
		return model.PoolMeta{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parsed, err := PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	token0, err := callAddress(ctx, reader, pool, parsed, "token0")
	if err != nil {
		return model.PoolMeta{}, err
	}
	token1, err := callAddress(ctx, reader, pool, parsed, "token1")
	if err != nil {
		return model.PoolMeta{}, err
	}

	values, err := callPoolMethod(ctx, reader, pool, parsed, "fee")
	if err != nil {
		return model.PoolMeta{}, err
	}
	feeTier, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("fee: %w", err)
	}

	values, err = callPoolMethod(ctx, reader, pool, parsed, "tickSpacing")
	if err != nil {
		return model.PoolMeta{}, err
	}
	spacing, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}
	tickSpacing, err := int24FromBig(spacing)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}

	meta := model.PoolMeta{
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		Fee:         uint32(feeTier.Uint64()),
		TickSpacing: tickSpacing,
	}
	for _, side := range []struct {
		token common.Address
		dst   **uint8
	}{{token0, &meta.Decimals0}, {token1, &meta.Decimals1}} {
		decimals, err := reader.TokenDecimals(ctx, side.token)
		if err != nil {
			logger.Warn("token decimals lookup failed", zap.String("pool", pool.Hex()), zap.String("token", side.token.Hex()), zap.Error(err))
			continue
		}
		*side.dst = &decimals
	}
	return meta, nil
}

func callAddress(ctx context.Context, reader ChainReader, pool common.Address, parsed abi.ABI, method string) (common.Address, error) {
	values, err := callPoolMethod(ctx, reader, pool, parsed, method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected type %T", method, values[0])
	}
	return addr, nil
}

func callPoolMethod(ctx context.Context, reader ChainReader, pool common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := reader.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	lo := big.NewInt(-1 << 23)
	hi := big.NewInt((1 << 23) - 1)
	if value.Cmp(lo) < 0 || value.Cmp(hi) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
