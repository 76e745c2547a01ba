package dex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"dynamicFee/internal/model"
)

var (
	testPool   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken0 = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testToken1 = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	sender     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient  = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// fakeReader answers pool getters from outputs and token decimals from decimals.
type fakeReader struct {
	outputs  map[string]interface{}
	decimals map[common.Address]uint8
	calls    int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		outputs: map[string]interface{}{
			"token0":      testToken0,
			"token1":      testToken1,
			"fee":         big.NewInt(3000),
			"tickSpacing": big.NewInt(60),
		},
		decimals: map[common.Address]uint8{testToken0: 6},
	}
}

func (f *fakeReader) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	for name, method := range parsed.Methods {
		if len(msg.Data) >= 4 && bytes.Equal(msg.Data[:4], method.ID) {
			out, ok := f.outputs[name]
			if !ok {
				return nil, fmt.Errorf("execution reverted: %s", name)
			}
			return method.Outputs.Pack(out)
		}
	}
	return nil, fmt.Errorf("unknown selector %x", msg.Data)
}

func (f *fakeReader) TokenDecimals(_ context.Context, token common.Address) (uint8, error) {
	decimals, ok := f.decimals[token]
	if !ok {
		return 0, errors.New("execution reverted")
	}
	return decimals, nil
}

func swapLog(t *testing.T, amount0, amount1 int64) model.LogRecord {
	t.Helper()
	parsed, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := parsed.Events[SwapEventName]
	data, err := event.Inputs.NonIndexed().Pack(
		big.NewInt(amount0),
		big.NewInt(amount1),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	return model.LogRecord{
		ChainID:     56,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     testPool.Hex(),
		Topics: []string{
			event.ID.Hex(),
			common.BytesToHash(sender.Bytes()).Hex(),
			common.BytesToHash(recipient.Bytes()).Hex(),
		},
		Data:      hexutil.Encode(data),
		Timestamp: 1700000000,
	}
}

func TestSwapDecoderCachedMeta(t *testing.T) {
	metas := NewPoolMetaCache()
	metas.Set(testPool, model.PoolMeta{Token0: testToken0.Hex(), Token1: testToken1.Hex(), Fee: 2500, TickSpacing: 60})

	decoder, err := NewSwapDecoder(DecoderConfig{}, nil, metas, nil)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	record, err := decoder.Decode(context.Background(), swapLog(t, -1000, 2000))
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if record.EventName != SwapEventName || record.Timestamp != 1700000000 || record.Address != testPool.Hex() {
		t.Fatalf("record mismatch: %+v", record)
	}

	var swap model.SwapEventData
	if err := json.Unmarshal(record.Decoded, &swap); err != nil {
		t.Fatalf("decoded payload: %v", err)
	}
	if swap.Amount0 != "-1000" || swap.Amount1 != "2000" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Tick != -15 || swap.SqrtPriceX96 != "123456789" || swap.Liquidity != "987654321" {
		t.Fatalf("price fields mismatch: %+v", swap)
	}
	if swap.Sender != sender.Hex() || swap.Recipient != recipient.Hex() {
		t.Fatalf("address mismatch: %+v", swap)
	}
	if record.PoolMeta.Fee != 2500 || record.PoolMeta.Token1 != testToken1.Hex() {
		t.Fatalf("pool meta mismatch: %+v", record.PoolMeta)
	}
}

func TestSwapDecoderFetchesMetaOnce(t *testing.T) {
	reader := newFakeReader()
	decoder, err := NewSwapDecoder(DecoderConfig{}, reader, nil, nil)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	ctx := context.Background()

	record, err := decoder.Decode(ctx, swapLog(t, 500, -250))
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	meta := record.PoolMeta
	if meta.Token0 != testToken0.Hex() || meta.Token1 != testToken1.Hex() {
		t.Fatalf("tokens mismatch: %+v", meta)
	}
	if meta.Fee != 3000 || meta.TickSpacing != 60 {
		t.Fatalf("fee tier mismatch: %+v", meta)
	}
	if meta.Decimals0 == nil || *meta.Decimals0 != 6 {
		t.Fatalf("decimals0 mismatch: %v", meta.Decimals0)
	}
	if meta.Decimals1 != nil {
		t.Fatalf("decimals1 should stay unset after a failed lookup")
	}

	calls := reader.calls
	if _, err := decoder.Decode(ctx, swapLog(t, -7, 9)); err != nil {
		t.Fatalf("second decode: %v", err)
	}
	if reader.calls != calls {
		t.Fatalf("pool meta fetched twice: %d calls after %d", reader.calls, calls)
	}
}

func TestSwapDecoderRejects(t *testing.T) {
	reader := newFakeReader()
	decoder, err := NewSwapDecoder(DecoderConfig{}, reader, nil, nil)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	ctx := context.Background()

	unknown := swapLog(t, 1, -1)
	unknown.Topics[0] = common.HexToHash("0x01").Hex()
	if decoder.CanDecode(unknown.Topic0()) {
		t.Fatalf("unknown topic0 accepted")
	}
	if _, err := decoder.Decode(ctx, unknown); err == nil {
		t.Fatalf("expected error for unknown topic0")
	}

	removed := swapLog(t, 1, -1)
	removed.Removed = true
	if _, err := decoder.Decode(ctx, removed); !errors.Is(err, ErrRemovedLog) {
		t.Fatalf("expected ErrRemovedLog, got %v", err)
	}

	short := swapLog(t, 1, -1)
	short.Topics = short.Topics[:2]
	if _, err := decoder.Decode(ctx, short); err == nil {
		t.Fatalf("expected error for missing recipient topic")
	}

	garbled := swapLog(t, 1, -1)
	garbled.Data = "0x1234"
	if _, err := decoder.Decode(ctx, garbled); err == nil {
		t.Fatalf("expected error for short data")
	}

	delete(reader.outputs, "token1")
	if _, err := decoder.Decode(ctx, swapLog(t, 1, -1)); err == nil {
		t.Fatalf("expected error when token1 call reverts")
	}
}

func TestSwapDecoderTopic0Map(t *testing.T) {
	alias := common.HexToHash("0x19b47279256b2a23a1665c810c8d55a1758940ee09377d4f8d26497a3577dc83").Hex()
	decoder, err := NewSwapDecoder(DecoderConfig{Topic0Map: map[string]string{alias: " swap "}}, nil, nil, nil)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if !decoder.CanDecode(alias) {
		t.Fatalf("alias topic0 not accepted")
	}
	swapID, err := SwapTopic0()
	if err != nil {
		t.Fatalf("swap topic0: %v", err)
	}
	if !decoder.CanDecode(swapID.Hex()) {
		t.Fatalf("canonical topic0 dropped")
	}

	if _, err := NewSwapDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "Mint"}}, nil, nil, nil); err == nil {
		t.Fatalf("expected error for non-swap alias")
	}
}
