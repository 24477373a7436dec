package net

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"beacon/internal/balances"
	"beacon/internal/common"
	"beacon/internal/engine"
	"beacon/internal/matcher"
	"beacon/internal/tokens"
)

const defaultWorkers = 10

// Engine is the slice of internal/engine.Engine the wire server calls
// into. Declared narrowly here so this package never imports engine's
// exec/command-loop internals, only its public RPC surface.
type Engine interface {
	ListToken(ctx context.Context, caller string, token common.TokenID) error
	DepositLiquidity(ctx context.Context, caller string, token common.TokenID) error
	Withdraw(ctx context.Context, caller string, token common.TokenID) (common.Amount, error)
	Trade(caller string, token common.TokenID, amount, price common.Amount, side common.Side) (matcher.Outcome, error)
	CloseOrder(caller string, token common.TokenID, side common.Side, amount, price common.Amount, timestampNs uint64) error
	CloseAllOrders(caller string) error
	Orders(token common.TokenID, side common.Side) []common.Order
	ExecutedOrders(token common.TokenID) []common.Trade
	Prices() map[common.TokenID]common.Trade
	Tokens() map[common.TokenID]tokens.Record
	TokenBalances(caller string) map[common.TokenID]balances.Balance
	SetPaymentToken(token common.TokenID) error
	SetRevenueAccount(account string) error
	Data() engine.AggregateStats
}

// Server accepts TCP connections and, one fixed-size worker pool deep,
// decodes a request frame, dispatches it to Engine, and writes back the
// Ok(...)/Err(...) response frame (spec §6/§7).
type Server struct {
	address string
	port    int
	engine  Engine
	pool    *WorkerPool
	cancel  context.CancelFunc
}

func New(address string, port int, engine Engine) *Server {
	return &Server{
		address: address,
		port:    port,
		engine:  engine,
		pool:    NewWorkerPool(defaultWorkers),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("net server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run listens until ctx is cancelled, handing each accepted connection to
// the worker pool. Grounded in the teacher's internal/net/server.go Run,
// generalized from a single always-listening-for-one-message loop to a
// per-connection read loop, since this protocol is request/response
// rather than fire-and-forget order submission.
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("net server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
			log.Info().Str("remote", conn.RemoteAddr().String()).Msg("client connected")
			s.pool.AddTask(conn)
		}
	}
}

// handleConnection reads frames off one connection until it closes or the
// tomb dies, dispatching each to Engine and writing back the response.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrInvalidMessageType
	}
	defer conn.Close()

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		header := make([]byte, HeaderLen)
		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				log.Error().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("error reading frame header")
			}
			return nil
		}
		typ, bodyLen, err := DecodeHeader(header)
		if err != nil {
			s.writeResponse(conn, errResponse(err))
			return nil
		}
		body := make([]byte, bodyLen)
		if bodyLen > 0 {
			if _, err := io.ReadFull(conn, body); err != nil {
				log.Error().Err(err).Msg("error reading frame body")
				return nil
			}
		}

		resp := s.dispatch(context.Background(), typ, body)
		if err := s.writeResponse(conn, resp); err != nil {
			log.Error().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("error writing response")
			return nil
		}
	}
}

func (s *Server) writeResponse(conn net.Conn, frame Frame) error {
	_, err := conn.Write(frame.Encode())
	return err
}

// dispatch decodes body per typ, calls the matching Engine method, and
// packs the result (or error) into a response Frame. Every branch mirrors
// one method on the Engine interface above.
func (s *Server) dispatch(ctx context.Context, typ MessageType, body []byte) Frame {
	switch typ {
	case TypeListToken:
		var req ListTokenRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errResponse(err)
		}
		if err := s.engine.ListToken(ctx, req.Caller, req.Token); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case TypeDepositLiquidity:
		var req DepositLiquidityRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errResponse(err)
		}
		if err := s.engine.DepositLiquidity(ctx, req.Caller, req.Token); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case TypeWithdraw:
		var req WithdrawRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errResponse(err)
		}
		paid, err := s.engine.Withdraw(ctx, req.Caller, req.Token)
		if err != nil {
			return errResponse(err)
		}
		return okResponse(paid)

	case TypeTrade:
		var req TradeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errResponse(err)
		}
		outcome, err := s.engine.Trade(req.Caller, req.Token, req.Amount, req.Price, req.Side)
		if err != nil {
			return errResponse(err)
		}
		return okResponse(outcome)

	case TypeCloseOrder:
		var req CloseOrderRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errResponse(err)
		}
		if err := s.engine.CloseOrder(req.Caller, req.Token, req.Side, req.Amount, req.Price, req.TimestampNs); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case TypeCloseAllOrders:
		var req CloseAllOrdersRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errResponse(err)
		}
		if err := s.engine.CloseAllOrders(req.Caller); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case TypeOrders:
		var req OrdersRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errResponse(err)
		}
		return okResponse(s.engine.Orders(req.Token, req.Side))

	case TypeExecutedOrders:
		var req ExecutedOrdersRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errResponse(err)
		}
		return okResponse(s.engine.ExecutedOrders(req.Token))

	case TypePrices:
		return okResponse(s.engine.Prices())

	case TypeTokens:
		return okResponse(s.engine.Tokens())

	case TypeData:
		return okResponse(s.engine.Data())

	case TypeTokenBalances:
		var req TokenBalancesRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errResponse(err)
		}
		return okResponse(s.engine.TokenBalances(req.Caller))

	case TypeSetPaymentToken:
		var req SetPaymentTokenRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errResponse(err)
		}
		if err := s.engine.SetPaymentToken(req.Token); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	case TypeSetRevenueAccount:
		var req SetRevenueAccountRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errResponse(err)
		}
		if err := s.engine.SetRevenueAccount(req.Account); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)

	default:
		return errResponse(ErrInvalidMessageType)
	}
}
