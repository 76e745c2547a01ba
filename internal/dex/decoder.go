// Package dex turns raw V3 pool logs into the swap records the replay consumes.
package dex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"dynamicFee/internal/model"
)

// ErrRemovedLog marks a log dropped by a reorg.
var ErrRemovedLog = errors.New("log removed by reorg")

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds topic0 aliases for forks that emit the Swap layout under
	// another signature. Values must name the swap event.
	Topic0Map map[string]string
}

// SwapDecoder decodes V3 pool Swap logs and attaches the pool's token pair.
type SwapDecoder struct {
	event  abi.Event
	topics map[string]struct{}
	reader ChainReader
	metas  *PoolMetaCache
	logger *zap.Logger
}

// NewSwapDecoder builds a decoder; reader may be nil when every pool is cached.
func NewSwapDecoder(cfg DecoderConfig, reader ChainReader, metas *PoolMetaCache, logger *zap.Logger) (*SwapDecoder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metas == nil {
		metas = NewPoolMetaCache()
	}
	parsed, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	event := parsed.Events[SwapEventName]

	topics := map[string]struct{}{strings.ToLower(event.ID.Hex()): {}}
	for topic0, name := range cfg.Topic0Map {
		if !strings.EqualFold(strings.TrimSpace(name), SwapEventName) {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", name)
		}
		if topic0 == "" {
			continue
		}
		topics[strings.ToLower(topic0)] = struct{}{}
	}

	return &SwapDecoder{
		event:  event,
		topics: topics,
		reader: reader,
		metas:  metas,
		logger: logger,
	}, nil
}

// CanDecode reports whether topic0 is a known swap signature.
func (d *SwapDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topics[strings.ToLower(topic0)]
	return ok
}

// Decode converts a raw swap log into a typed event record.
func (d *SwapDecoder) Decode(ctx context.Context, log model.LogRecord) (model.TypedEventRecord, error) {
	if !d.CanDecode(log.Topic0()) {
		return model.TypedEventRecord{}, fmt.Errorf("unsupported topic0: %q", log.Topic0())
	}
	if log.Removed {
		return model.TypedEventRecord{}, ErrRemovedLog
	}
	if !common.IsHexAddress(log.Address) {
		return model.TypedEventRecord{}, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	pool := common.HexToAddress(log.Address)

	swap, err := d.decodeSwap(log)
	if err != nil {
		return model.TypedEventRecord{}, err
	}
	decoded, err := json.Marshal(swap)
	if err != nil {
		return model.TypedEventRecord{}, fmt.Errorf("marshal swap: %w", err)
	}

	meta, err := d.poolMeta(ctx, pool)
	if err != nil {
		return model.TypedEventRecord{}, err
	}

	return model.TypedEventRecord{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     pool.Hex(),
		EventName:   SwapEventName,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		PoolMeta:    meta,
	}, nil
}

func (d *SwapDecoder) poolMeta(ctx context.Context, pool common.Address) (model.PoolMeta, error) {
	if meta, ok := d.metas.Get(pool); ok {
		return meta, nil
	}
	if d.reader == nil {
		return model.PoolMeta{}, fmt.Errorf("pool %s: no metadata and no chain client", pool.Hex())
	}
	meta, err := FetchPoolMeta(ctx, d.reader, pool, d.logger)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("pool %s meta: %w", pool.Hex(), err)
	}
	d.metas.Set(pool, meta)
	d.logger.Debug("pool meta loaded", zap.String("pool", pool.Hex()), zap.String("token0", meta.Token0), zap.String("token1", meta.Token1))
	return meta, nil
}

func (d *SwapDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	indexedArgs := indexedArguments(d.event.Inputs)
	if len(log.Topics) != len(indexedArgs)+1 {
		return model.SwapEventData{}, fmt.Errorf("expected %d topics, got %d", len(indexedArgs)+1, len(log.Topics))
	}
	topics, err := parseTopicHashes(log.Topics[1:])
	if err != nil {
		return model.SwapEventData{}, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArgs, topics); err != nil {
		return model.SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return model.SwapEventData{}, fmt.Errorf("invalid data: %w", err)
	}
	values, err := d.event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return model.SwapEventData{}, fmt.Errorf("unpack swap: %w", err)
	}
	if len(values) != 5 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	ints := make([]string, 4)
	for i := range ints {
		v, err := asBigInt(values[i])
		if err != nil {
			return model.SwapEventData{}, err
		}
		ints[i] = v.String()
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Sender:       indexed.Sender.Hex(),
		Recipient:    indexed.Recipient.Hex(),
		Amount0:      ints[0],
		Amount1:      ints[1],
		SqrtPriceX96: ints[2],
		Liquidity:    ints[3],
		Tick:         tick,
	}, nil
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
