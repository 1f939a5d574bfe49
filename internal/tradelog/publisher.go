package tradelog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"matchbook/internal/common"

	"github.com/segmentio/kafka-go"
)

// Publisher forwards trades to a Kafka topic.
type Publisher struct {
	symbol string
	writer *kafka.Writer
}

// tradeEvent is the JSON value of a published trade.
type tradeEvent struct {
	Symbol       string    `json:"symbol"`
	Sequence     uint64    `json:"seq"`
	TakerOrderID uint64    `json:"taker_order_id"`
	MakerOrderID uint64    `json:"maker_order_id"`
	TakerSide    string    `json:"taker_side"`
	Quantity     uint64    `json:"qty"`
	Price        uint64    `json:"price"`
	TakerOwner   string    `json:"taker"`
	MakerOwner   string    `json:"maker"`
	Timestamp    time.Time `json:"ts"`
}

func NewPublisher(symbol string, brokers []string, topic string) *Publisher {
	return &Publisher{
		symbol: symbol,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Publisher) Name() string {
	return "kafka"
}

func (p *Publisher) Deliver(ctx context.Context, trade common.Trade) error {
	msg, err := p.message(trade)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish trade %d: %w", trade.Sequence, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// message keys trades by maker order id so fills of one resting order stay
// on one partition.
func (p *Publisher) message(trade common.Trade) (kafka.Message, error) {
	value, err := json.Marshal(tradeEvent{
		Symbol:       p.symbol,
		Sequence:     trade.Sequence,
		TakerOrderID: trade.TakerOrderID,
		MakerOrderID: trade.MakerOrderID,
		TakerSide:    trade.TakerSide.String(),
		Quantity:     trade.Quantity,
		Price:        trade.Price,
		TakerOwner:   trade.TakerOwner,
		MakerOwner:   trade.MakerOwner,
		Timestamp:    trade.Timestamp,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode trade %d: %w", trade.Sequence, err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(trade.MakerOrderID, 10)),
		Value: value,
		Time:  trade.Timestamp,
	}, nil
}
