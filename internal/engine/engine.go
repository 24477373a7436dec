// Package engine is the root orchestrator (spec §1's "single owned root
// container") gluing Book, VirtualBalances, Matcher, Custody, Tokens and
// Invariants together behind the RPC surface in spec §6. It realizes the
// single-threaded cooperative model of spec §5 as one goroutine draining a
// command channel — the same shape as the teacher's sessionHandler
// draining clientMessages in internal/net/server.go, generalized from "one
// channel of parsed wire messages" to "one channel of arbitrary thunks".
package engine

import (
	"time"

	tomb "gopkg.in/tomb.v2"

	"beacon/internal/balances"
	"beacon/internal/book"
	"beacon/internal/common"
	"beacon/internal/config"
	"beacon/internal/custody"
	"beacon/internal/ledger"
	"beacon/internal/tokens"
)

// Engine is the process-wide singleton state spec §9's design notes call
// for: one owned root container whose mutations are funnelled through a
// single goroutine, with every identifier-based lookup (owner, token) done
// by map key rather than back-pointer, per the same design note's
// "cyclic references avoided by indirection" guidance.
type Engine struct {
	cfg    config.Config
	client ledger.Client
	clock  func() uint64

	balances *balances.Ledger
	registry *tokens.Registry
	custody  *custody.Service

	books map[common.TokenID]*book.Book

	archive   map[common.TokenID][]common.Trade
	lastTrade map[common.TokenID]common.Trade
	volumeDay map[common.TokenID]*dayStats

	paymentToken    common.TokenID
	paymentTokenSet bool
	revenueAccount  string

	cmds chan func()
}

// New constructs an Engine. client is the external ledger every listed
// token is assumed to live on; a reference deployment backs it with
// ledger.MemoryLedger, a real one with whatever out-of-scope integration
// spec §1 assumes exists.
func New(cfg config.Config, client ledger.Client) *Engine {
	bal := balances.New()
	return &Engine{
		cfg:       cfg,
		client:    client,
		clock:     func() uint64 { return uint64(time.Now().UnixNano()) },
		balances:  bal,
		registry:  tokens.New(),
		custody:   custody.New(client, bal),
		books:     make(map[common.TokenID]*book.Book),
		archive:   make(map[common.TokenID][]common.Trade),
		lastTrade: make(map[common.TokenID]common.Trade),
		volumeDay: make(map[common.TokenID]*dayStats),
		cmds:      make(chan func()),
	}
}

// Run drains the command channel until t is dying. Every mutating and
// read-only RPC method funnels through exec, so nothing in this package
// ever touches engine state from more than one goroutine.
func (e *Engine) Run(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case fn := <-e.cmds:
			fn()
		}
	}
}

// exec runs fn on the engine's single command-loop goroutine and blocks
// until it completes, giving the caller a synchronous call that is still
// serialized with respect to every other caller (spec §5's ordering
// guarantee: "orders submitted by distinct users are ordered by the
// logical-thread arrival order").
func (e *Engine) exec(fn func()) {
	done := make(chan struct{})
	e.cmds <- func() {
		fn()
		close(done)
	}
	<-done
}

func (e *Engine) bookFor(token common.TokenID) (*book.Book, bool) {
	bk, ok := e.books[token]
	return bk, ok
}
