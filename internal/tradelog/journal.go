package tradelog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"matchbook/internal/common"

	"github.com/cockroachdb/pebble"
)

var (
	ErrTradeNotFound  = errors.New("trade not found")
	ErrCorruptRecord  = errors.New("corrupt trade record")
	journalPrefix     = []byte("trade/")
	journalUpperBound = []byte("trade/~")
)

// Journal keeps every trade in a pebble store, keyed by a journal index that
// keeps growing across restarts.
type Journal struct {
	mu   sync.Mutex
	db   *pebble.DB
	next uint64
}

func OpenJournal(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", dir, err)
	}
	j := &Journal{db: db}

	last, err := j.lastIndex()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	j.next = last + 1
	return j, nil
}

func (j *Journal) Name() string {
	return "journal"
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Deliver appends the trade to the journal.
func (j *Journal) Deliver(_ context.Context, trade common.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.db.Set(keyFor(j.next), encodeTrade(trade), pebble.Sync); err != nil {
		return fmt.Errorf("journal trade %d: %w", trade.Sequence, err)
	}
	j.next++
	return nil
}

// Len is the number of trades journaled so far.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.next - 1
}

// Get returns the trade at a journal index, starting at 1.
func (j *Journal) Get(index uint64) (common.Trade, error) {
	val, closer, err := j.db.Get(keyFor(index))
	if errors.Is(err, pebble.ErrNotFound) {
		return common.Trade{}, fmt.Errorf("%w: index %d", ErrTradeNotFound, index)
	}
	if err != nil {
		return common.Trade{}, err
	}
	defer closer.Close()

	return decodeTrade(val)
}

// Scan calls fn for every journaled trade in journal order. It stops at the
// first error.
func (j *Journal) Scan(fn func(index uint64, trade common.Trade) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: journalPrefix,
		UpperBound: journalUpperBound,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		index, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		trade, err := decodeTrade(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(index, trade); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (j *Journal) lastIndex() (uint64, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: journalPrefix,
		UpperBound: journalUpperBound,
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

func keyFor(index uint64) []byte {
	return []byte(fmt.Sprintf("trade/%020d", index))
}

func parseKey(key []byte) (uint64, error) {
	index, err := strconv.ParseUint(string(key[len(journalPrefix):]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: key %q", ErrCorruptRecord, key)
	}
	return index, nil
}

// Record layout, big-endian:
// [seq:8][taker:8][maker:8][side:1][qty:8][price:8][time:8][takerLen:2][makerLen:2][owners...]
const recordHeaderLen = 8 + 8 + 8 + 1 + 8 + 8 + 8 + 2 + 2

func encodeTrade(t common.Trade) []byte {
	buf := make([]byte, recordHeaderLen+len(t.TakerOwner)+len(t.MakerOwner))
	binary.BigEndian.PutUint64(buf[0:8], t.Sequence)
	binary.BigEndian.PutUint64(buf[8:16], t.TakerOrderID)
	binary.BigEndian.PutUint64(buf[16:24], t.MakerOrderID)
	buf[24] = byte(t.TakerSide)
	binary.BigEndian.PutUint64(buf[25:33], t.Quantity)
	binary.BigEndian.PutUint64(buf[33:41], t.Price)
	binary.BigEndian.PutUint64(buf[41:49], uint64(t.Timestamp.UnixNano()))
	binary.BigEndian.PutUint16(buf[49:51], uint16(len(t.TakerOwner)))
	binary.BigEndian.PutUint16(buf[51:53], uint16(len(t.MakerOwner)))
	n := copy(buf[recordHeaderLen:], t.TakerOwner)
	copy(buf[recordHeaderLen+n:], t.MakerOwner)
	return buf
}

func decodeTrade(b []byte) (common.Trade, error) {
	if len(b) < recordHeaderLen {
		return common.Trade{}, fmt.Errorf("%w: %d bytes", ErrCorruptRecord, len(b))
	}
	takerLen := int(binary.BigEndian.Uint16(b[49:51]))
	makerLen := int(binary.BigEndian.Uint16(b[51:53]))
	if len(b) != recordHeaderLen+takerLen+makerLen {
		return common.Trade{}, fmt.Errorf("%w: owner lengths do not match", ErrCorruptRecord)
	}
	owners := b[recordHeaderLen:]
	return common.Trade{
		Sequence:     binary.BigEndian.Uint64(b[0:8]),
		TakerOrderID: binary.BigEndian.Uint64(b[8:16]),
		MakerOrderID: binary.BigEndian.Uint64(b[16:24]),
		TakerSide:    common.Side(b[24]),
		Quantity:     binary.BigEndian.Uint64(b[25:33]),
		Price:        binary.BigEndian.Uint64(b[33:41]),
		Timestamp:    time.Unix(0, int64(binary.BigEndian.Uint64(b[41:49]))),
		TakerOwner:   string(owners[:takerLen]),
		MakerOwner:   string(owners[takerLen:]),
	}, nil
}
