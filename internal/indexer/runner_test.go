package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dynamicFee/internal/model"
)

var (
	pool   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	topic0 = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")
)

type fakeSource struct {
	chainID        int64
	latest         uint64
	logs           []types.Log
	filterFailures int
	filterCalls    []BlockRange
}

func (f *fakeSource) GetChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number*12, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	if f.filterFailures > 0 {
		f.filterFailures--
		return nil, errors.New("429 too many requests")
	}
	f.filterCalls = append(f.filterCalls, BlockRange{From: from, To: to})
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

type memSink struct {
	records []model.LogRecord
}

func (s *memSink) PutLogBatch(_ context.Context, records []model.LogRecord) error {
	s.records = append(s.records, records...)
	return nil
}

func swapAt(block uint64, index uint) types.Log {
	return types.Log{
		Address:     pool,
		Topics:      []common.Hash{topic0},
		Data:        []byte{0x01, 0x02},
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
		Index:       index,
	}
}

func testRunConfig(checkpoint string) RunConfig {
	return RunConfig{
		FromBlock:      1,
		Confirmations:  2,
		Addresses:      []common.Address{pool},
		Topic0:         []common.Hash{topic0},
		BatchSize:      3,
		CheckpointPath: checkpoint,
		MaxRetries:     2,
		RetryBackoff:   time.Millisecond,
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	checkpoint := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	source := &fakeSource{
		chainID:        56,
		latest:         10,
		logs:           []types.Log{swapAt(2, 0), swapAt(2, 0), swapAt(5, 3), swapAt(9, 1)},
		filterFailures: 1,
	}
	sink := &memSink{}

	if err := NewRunner(testRunConfig(checkpoint), source, sink, nil).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(source.filterCalls) != 3 || source.filterCalls[2] != (BlockRange{From: 7, To: 8}) {
		t.Fatalf("unexpected ranges: %+v", source.filterCalls)
	}
	if len(sink.records) != 2 {
		t.Fatalf("expected 2 records after dedupe, got %d", len(sink.records))
	}
	first := sink.records[0]
	if first.ChainID != 56 || first.BlockNumber != 2 || first.Timestamp != 1_700_000_024 {
		t.Fatalf("record mismatch: %+v", first)
	}
	if first.Data != "0x0102" || first.Topic0() != topic0.Hex() || first.Address != pool.Hex() {
		t.Fatalf("record payload mismatch: %+v", first)
	}

	cp, ok, err := NewCheckpointStore(checkpoint).Load()
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if cp.ChainID != 56 || cp.LastProcessedBlock != 8 {
		t.Fatalf("checkpoint mismatch: %+v", cp)
	}

	source.latest = 13
	source.filterCalls = nil
	if err := NewRunner(testRunConfig(checkpoint), source, sink, nil).Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(source.filterCalls) != 1 || source.filterCalls[0] != (BlockRange{From: 9, To: 11}) {
		t.Fatalf("resume ranges: %+v", source.filterCalls)
	}
	if len(sink.records) != 3 || sink.records[2].BlockNumber != 9 {
		t.Fatalf("resume records: %+v", sink.records)
	}
}

func TestRunnerRejectsForeignCheckpoint(t *testing.T) {
	checkpoint := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := NewCheckpointStore(checkpoint).Save(1, 4); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	source := &fakeSource{chainID: 56, latest: 10}
	if err := NewRunner(testRunConfig(checkpoint), source, &memSink{}, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected chain id mismatch error")
	}
	if len(source.filterCalls) != 0 {
		t.Fatalf("logs fetched despite mismatch")
	}
}

func TestRunnerGivesUpAfterRetries(t *testing.T) {
	checkpoint := filepath.Join(t.TempDir(), "checkpoint.json")
	source := &fakeSource{chainID: 56, latest: 10, filterFailures: 5}

	if err := NewRunner(testRunConfig(checkpoint), source, &memSink{}, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected filter error")
	}
	if source.filterFailures != 2 {
		t.Fatalf("expected 3 attempts, %d failures left", source.filterFailures)
	}
	if _, ok, err := NewCheckpointStore(checkpoint).Load(); ok || err != nil {
		t.Fatalf("checkpoint written after failure: ok=%v err=%v", ok, err)
	}
}

func TestRunnerNothingBehindConfirmations(t *testing.T) {
	source := &fakeSource{chainID: 56, latest: 1}
	if err := NewRunner(testRunConfig(""), source, &memSink{}, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(source.filterCalls) != 0 {
		t.Fatalf("unexpected fetch: %+v", source.filterCalls)
	}
}

func TestParseTopic0(t *testing.T) {
	topics, err := ParseTopic0([]string{" ", topic0.Hex()})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(topics) != 1 || topics[0] != topic0 {
		t.Fatalf("topics mismatch: %+v", topics)
	}
	if _, err := ParseTopic0([]string{"0x1234"}); err == nil {
		t.Fatalf("expected length error")
	}
	if _, err := ParseAddresses([]string{"pool"}); err == nil {
		t.Fatalf("expected address error")
	}
}
