package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	. "matchbook/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrFrameTooLarge      = errors.New("frame too large")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	Depth
)

type ReportMessageType int

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
	AckReport
	DepthReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants. Every message travels in a frame made of a
// 2 byte length followed by that many bytes of payload.
const (
	FrameHeaderLen           = 2
	MaxFrameLen              = 4 * 1024
	BaseMessageHeaderLen     = 2
	NewOrderMessageHeaderLen = 2 + 8 + 8 + 1 + 1
	DepthMessageHeaderLen    = 2
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

// ReadFrame reads one length-prefixed frame and returns its payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [FrameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(header[:]))
	if n > MaxFrameLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func frame(typeOf MessageType, body []byte) []byte {
	buf := make([]byte, FrameHeaderLen+BaseMessageHeaderLen+len(body))
	binary.BigEndian.PutUint16(buf[0:2], uint16(BaseMessageHeaderLen+len(body)))
	binary.BigEndian.PutUint16(buf[2:4], uint16(typeOf))
	copy(buf[4:], body)
	return buf
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, fmt.Errorf("%w: missing header", ErrMessageTooShort)
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case NewOrder:
		return parseNewOrder(msg)
	case Depth:
		return parseDepth(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

// EncodeHeartbeat returns a framed heartbeat.
func EncodeHeartbeat() []byte {
	return frame(Heartbeat, nil)
}

type NewOrderMessage struct {
	BaseMessage
	OrderType   OrderType // 2 bytes
	LimitPrice  uint64    // 8 bytes
	Quantity    uint64    // 8 bytes
	Side        Side      // 1 byte
	UsernameLen uint8     // 1 byte
	Username    string    // n bytes
}

func (o *NewOrderMessage) Order() Order {
	return Order{
		OrderType:  o.OrderType,
		Side:       o.Side,
		LimitPrice: o.LimitPrice,
		Quantity:   o.Quantity,
		Timestamp:  time.Now(),
		Owner:      o.Username,
	}
}

// Encode returns the framed message. Usernames longer than 255 bytes are
// truncated.
func (o *NewOrderMessage) Encode() []byte {
	username := o.Username
	if len(username) > 255 {
		username = username[:255]
	}
	body := make([]byte, NewOrderMessageHeaderLen+len(username))
	binary.BigEndian.PutUint16(body[0:2], uint16(o.OrderType))
	binary.BigEndian.PutUint64(body[2:10], o.LimitPrice)
	binary.BigEndian.PutUint64(body[10:18], o.Quantity)
	body[18] = byte(o.Side)
	body[19] = uint8(len(username))
	copy(body[20:], username)
	return frame(NewOrder, body)
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, fmt.Errorf("%w: new order header", ErrMessageTooShort)
	}
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	m.OrderType = OrderType(binary.BigEndian.Uint16(msg[0:2]))
	m.LimitPrice = binary.BigEndian.Uint64(msg[2:10])
	m.Quantity = binary.BigEndian.Uint64(msg[10:18])
	m.Side = Side(msg[18])
	m.UsernameLen = msg[19]

	// Calculate expected total length.
	expectedTotalLen := NewOrderMessageHeaderLen + int(m.UsernameLen)
	if len(msg) < expectedTotalLen {
		return NewOrderMessage{}, fmt.Errorf("%w: username", ErrMessageTooShort)
	}
	m.Username = string(msg[NewOrderMessageHeaderLen:expectedTotalLen])

	return m, nil
}

type DepthMessage struct {
	BaseMessage
	Levels uint16 // 2 bytes, 0 for the whole book
}

func (d *DepthMessage) Encode() []byte {
	body := make([]byte, DepthMessageHeaderLen)
	binary.BigEndian.PutUint16(body, d.Levels)
	return frame(Depth, body)
}

func parseDepth(msg []byte) (DepthMessage, error) {
	if len(msg) < DepthMessageHeaderLen {
		return DepthMessage{}, fmt.Errorf("%w: depth", ErrMessageTooShort)
	}
	return DepthMessage{
		BaseMessage: BaseMessage{TypeOf: Depth},
		Levels:      binary.BigEndian.Uint16(msg[0:2]),
	}, nil
}

type Report struct {
	MessageType     ReportMessageType // 1 byte
	Side            Side              // 1 byte
	Timestamp       uint64            // 8 bytes
	Quantity        uint64            // 8 bytes
	Price           uint64            // 8 bytes
	OrderID         uint64            // 8 bytes
	CounterpartyLen uint16            // 2 bytes
	ErrStrLen       uint32            // 4 bytes
	Err             string            // n bytes
	Counterparty    string            // n bytes (in this case we show who)
}

const ReportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 8 + 2 + 4

// Serialize converts the report to be sent on the wire. The length fields
// are derived from the strings.
func (r *Report) Serialize() []byte {
	r.ErrStrLen = uint32(len(r.Err))
	r.CounterpartyLen = uint16(len(r.Counterparty))

	buf := make([]byte, ReportFixedHeaderLen+len(r.Err)+len(r.Counterparty))
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], r.Timestamp)
	binary.BigEndian.PutUint64(buf[10:18], r.Quantity)
	binary.BigEndian.PutUint64(buf[18:26], r.Price)
	binary.BigEndian.PutUint64(buf[26:34], r.OrderID)
	binary.BigEndian.PutUint16(buf[34:36], r.CounterpartyLen)
	binary.BigEndian.PutUint32(buf[36:40], r.ErrStrLen)

	offset := ReportFixedHeaderLen
	offset += copy(buf[offset:], r.Err)
	copy(buf[offset:], r.Counterparty)
	return buf
}

// ReadReport reads the next report off the wire.
func ReadReport(rd io.Reader) (Report, error) {
	header := make([]byte, ReportFixedHeaderLen)
	if _, err := io.ReadFull(rd, header); err != nil {
		return Report{}, err
	}

	r := Report{
		MessageType:     ReportMessageType(header[0]),
		Side:            Side(header[1]),
		Timestamp:       binary.BigEndian.Uint64(header[2:10]),
		Quantity:        binary.BigEndian.Uint64(header[10:18]),
		Price:           binary.BigEndian.Uint64(header[18:26]),
		OrderID:         binary.BigEndian.Uint64(header[26:34]),
		CounterpartyLen: binary.BigEndian.Uint16(header[34:36]),
		ErrStrLen:       binary.BigEndian.Uint32(header[36:40]),
	}
	if r.ErrStrLen > MaxFrameLen {
		return Report{}, fmt.Errorf("%w: error string of %d bytes", ErrFrameTooLarge, r.ErrStrLen)
	}

	body := make([]byte, int(r.ErrStrLen)+int(r.CounterpartyLen))
	if _, err := io.ReadFull(rd, body); err != nil {
		return Report{}, err
	}
	r.Err = string(body[:r.ErrStrLen])
	r.Counterparty = string(body[r.ErrStrLen:])
	return r, nil
}

// generateWireTradeReports generates both trade reports, addressed to the
// taker and the maker respectively.
func generateWireTradeReports(trade Trade) ([]byte, []byte) {
	createReport := func(side Side, orderID uint64, counterparty string) Report {
		return Report{
			MessageType:  ExecutionReport,
			Side:         side,
			Timestamp:    uint64(trade.Timestamp.UnixNano()),
			Quantity:     trade.Quantity,
			Price:        trade.Price,
			OrderID:      orderID,
			Counterparty: counterparty,
		}
	}

	taker := createReport(trade.TakerSide, trade.TakerOrderID, trade.MakerOwner)
	maker := createReport(trade.MakerSide(), trade.MakerOrderID, trade.TakerOwner)
	return taker.Serialize(), maker.Serialize()
}

func generateWireErrorReport(err error) []byte {
	report := Report{
		MessageType: ErrorReport,
		Timestamp:   uint64(time.Now().UnixNano()),
		Err:         err.Error(),
	}
	return report.Serialize()
}
