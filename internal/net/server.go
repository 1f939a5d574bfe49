package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	. "matchbook/internal/common"
	"matchbook/internal/config"
	"matchbook/internal/engine"
	"matchbook/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrOwnerMismatch      = errors.New("session is bound to another owner")
	ErrMissingOwner       = errors.New("order has no owner")
)

// OrderPlacer is the part of the engine the gateway drives.
type OrderPlacer interface {
	PlaceOrder(order Order) (engine.Placement, error)
	Depth(side Side, limit int) []engine.FlatPriceLevel
}

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	id    string
	conn  net.Conn
	owner string

	writeLock sync.Mutex
}

// write gives up at deadline, so a client that stops reading cannot hold
// up the writer.
func (session *ClientSession) write(deadline time.Time, b []byte) error {
	session.writeLock.Lock()
	defer session.writeLock.Unlock()

	if err := session.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := session.conn.Write(b)
	return err
}

// Server is the order gateway. Each connection is served by one worker of
// the pool for as long as it stays open.
type Server struct {
	address     string
	connTimeout time.Duration
	engine      OrderPlacer
	pool        *utils.WorkerPool
	listener    net.Listener

	clientSessions     map[string]*ClientSession // by session id
	ownerSessions      map[string]*ClientSession // by owner
	clientSessionsLock sync.Mutex
}

func New(cfg config.ServerConfig, eng OrderPlacer) *Server {
	return &Server{
		address:        cfg.ListenAddress(),
		connTimeout:    cfg.ConnTimeout,
		engine:         eng,
		pool:           utils.NewWorkerPool(cfg.Workers),
		clientSessions: make(map[string]*ClientSession),
		ownerSessions:  make(map[string]*ClientSession),
	}
}

// Listen binds the listener without accepting yet.
func (s *Server) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("unable to start listener: %w", err)
	}
	s.listener = listener
	return nil
}

// Addr is the bound address, valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run listens if needed and serves clients until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(ctx); err != nil {
			return err
		}
	}
	t, _ := tomb.WithContext(ctx)

	// Start the worker pool.
	s.pool.Setup(t, s.handleConnection)

	// Start accepting connections.
	t.Go(func() error {
		return s.accept(t)
	})

	log.Info().Str("address", s.Addr().String()).Msg("server running")

	<-t.Dying()
	log.Info().Msg("server shutting down")
	if err := s.listener.Close(); err != nil {
		log.Error().Err(err).Msg("unable to close listener")
	}
	s.closeClientSessions()

	err := t.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) accept(t *tomb.Tomb) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !t.Alive() {
				return nil
			}
			log.Error().Err(err).Msg("error accepting client")
			continue
		}

		session := s.addClientSession(conn)
		log.Info().
			Str("session", session.id).
			Str("address", conn.RemoteAddr().String()).
			Msg("new client added")

		// Pass over the session to be read from.
		if !s.pool.AddTask(t, session) {
			s.deleteClientSession(session)
			return nil
		}
	}
}

// handleConnection reads messages off one session until it closes, idles out
// or the server dies. Errors on a single session are not fatal to the pool.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	session, ok := task.(*ClientSession)
	if !ok {
		return ErrImproperConversion
	}
	defer s.deleteClientSession(session)

	for t.Alive() {
		if err := session.conn.SetReadDeadline(time.Now().Add(s.connTimeout)); err != nil {
			log.Error().Err(err).Str("session", session.id).Msg("failed setting deadline for connection")
			return nil
		}

		payload, err := ReadFrame(session.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || !t.Alive() {
				log.Info().Str("session", session.id).Msg("client disconnected")
			} else {
				log.Error().Err(err).Str("session", session.id).Msg("error reading from connection")
			}
			return nil
		}

		message, err := parseMessage(payload)
		if err != nil {
			log.Error().Err(err).Str("session", session.id).Msg("error parsing message")
			s.reportError(session, err)
			continue
		}
		s.handleMessage(session, message)
	}
	return nil
}

func (s *Server) handleMessage(session *ClientSession, message Message) {
	switch m := message.(type) {
	case NewOrderMessage:
		s.handleNewOrder(session, m)
	case DepthMessage:
		s.handleDepth(session, m)
	default:
		// Heartbeats only refresh the read deadline.
	}
}

func (s *Server) handleNewOrder(session *ClientSession, m NewOrderMessage) {
	if err := s.bindOwner(session, m.Username); err != nil {
		s.reportError(session, err)
		return
	}

	order := m.Order()
	placement, err := s.engine.PlaceOrder(order)
	if err != nil {
		s.reportError(session, err)
		return
	}

	ack := Report{
		MessageType: AckReport,
		Side:        order.Side,
		Timestamp:   uint64(order.Timestamp.UnixNano()),
		Quantity:    placement.Resting,
		Price:       order.LimitPrice,
		OrderID:     placement.OrderID,
	}
	s.send(session, ack.Serialize())
}

func (s *Server) handleDepth(session *ClientSession, m DepthMessage) {
	now := uint64(time.Now().UnixNano())
	for _, side := range []Side{Buy, Sell} {
		for _, level := range s.engine.Depth(side, int(m.Levels)) {
			report := Report{
				MessageType: DepthReport,
				Side:        side,
				Timestamp:   now,
				Quantity:    level.Quantity,
				Price:       level.PriceLevel,
			}
			s.send(session, report.Serialize())
		}
	}
}

// Name and Deliver make the server a trade sink: both parties of a trade get
// an execution report if they are connected.
func (s *Server) Name() string {
	return "gateway"
}

// A client that does not take its report before the write deadline, or
// before ctx expires, is disconnected.
func (s *Server) Deliver(ctx context.Context, trade Trade) error {
	deadline := s.writeDeadline()
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	takerReport, makerReport := generateWireTradeReports(trade)
	return errors.Join(
		s.report(deadline, trade.TakerOwner, takerReport),
		s.report(deadline, trade.MakerOwner, makerReport),
	)
}

func (s *Server) report(deadline time.Time, owner string, report []byte) error {
	s.clientSessionsLock.Lock()
	session, ok := s.ownerSessions[owner]
	s.clientSessionsLock.Unlock()
	if !ok {
		return nil
	}

	if err := session.write(deadline, report); err != nil {
		s.deleteClientSession(session)
		return fmt.Errorf("unable to send report to %s: %w", owner, err)
	}
	return nil
}

func (s *Server) reportError(session *ClientSession, err error) {
	s.send(session, generateWireErrorReport(err))
}

func (s *Server) send(session *ClientSession, b []byte) {
	if err := session.write(s.writeDeadline(), b); err != nil {
		log.Error().Err(err).Str("session", session.id).Msg("unable to write to client")
		s.deleteClientSession(session)
	}
}

func (s *Server) writeDeadline() time.Time {
	return time.Now().Add(s.connTimeout)
}

// bindOwner ties the session to the first owner it trades for. Reports for
// that owner are routed to the most recent session bound to it.
func (s *Server) bindOwner(session *ClientSession, owner string) error {
	if owner == "" {
		return ErrMissingOwner
	}

	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	if session.owner != "" {
		if session.owner != owner {
			return fmt.Errorf("%w: %s", ErrOwnerMismatch, session.owner)
		}
		return nil
	}
	session.owner = owner
	s.ownerSessions[owner] = session
	return nil
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) *ClientSession {
	session := &ClientSession{
		id:   uuid.New().String(),
		conn: conn,
	}

	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[session.id] = session
	return session
}

// deleteClientSession is an atomic map remove. It closes the connection.
func (s *Server) deleteClientSession(session *ClientSession) {
	s.clientSessionsLock.Lock()
	_, ok := s.clientSessions[session.id]
	delete(s.clientSessions, session.id)
	if current, bound := s.ownerSessions[session.owner]; bound && current == session {
		delete(s.ownerSessions, session.owner)
	}
	s.clientSessionsLock.Unlock()

	if !ok {
		return
	}
	if err := session.conn.Close(); err != nil {
		log.Error().Err(err).Str("session", session.id).Msg("unable to close connection")
	}
}

func (s *Server) closeClientSessions() {
	s.clientSessionsLock.Lock()
	sessions := make([]*ClientSession, 0, len(s.clientSessions))
	for _, session := range s.clientSessions {
		sessions = append(sessions, session)
	}
	s.clientSessionsLock.Unlock()

	for _, session := range sessions {
		s.deleteClientSession(session)
	}
}
