package vdf

import (
	"context"
	"github.com/aristanetworks/goarista/monotime"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/log"
	"github.com/shopspring/decimal"
	"sync"
	"sync/atomic"
	"time"
)

type State struct {
	IterationsPerSecond float64 `json:"iterations_per_second"`
	Difficulty          uint64  `json:"difficulty"`
	IsActive            bool    `json:"is_active"`
}

// Engine runs a sequential hash chain in the background and turns its progress into
// VdfState snapshots. Completed proofs are chained: each proof's seed is the output of
// the previous one, so a proof produced before a suspension cannot be presented as
// fresh work afterwards.
type Engine struct {
	difficulty uint64
	batchSize  uint64
	rateWindow int
	monoClock  func() uint64
	log        log.Logger

	mutex     sync.Mutex
	seed      common.Hash
	current   common.Hash
	progress  uint64
	total     uint64
	lastProof *Proof
	proofs    uint64

	ticked      bool
	lastElapsed time.Duration
	lastTotal   uint64
	lastMono    uint64
	rates       []decimal.Decimal
	stopped     bool

	state atomic.Value
}

// NewEngine creates a stopped engine. A zero difficulty is raised to one iteration
// per proof.
func NewEngine(seed common.Hash, difficulty, batchSize uint64, rateWindow int) *Engine {
	if difficulty == 0 {
		difficulty = 1
	}
	if batchSize == 0 {
		batchSize = 1
	}
	if rateWindow <= 0 {
		rateWindow = 1
	}
	e := &Engine{
		difficulty: difficulty,
		batchSize:  batchSize,
		rateWindow: rateWindow,
		monoClock:  monotime.Now,
		log:        log.New("component", "vdf"),
		seed:       seed,
		current:    seed,
	}
	e.state.Store(State{Difficulty: difficulty})
	return e
}

// SetMonoClock replaces the monotonic clock source, tests only.
func (e *Engine) SetMonoClock(clock func() uint64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.monoClock = clock
}

func (e *Engine) Difficulty() uint64 {
	return e.difficulty
}

// Compute performs n sequential iterations. Only one goroutine may call Compute.
func (e *Engine) Compute(n uint64) {
	for n > 0 {
		e.mutex.Lock()
		if e.stopped {
			e.mutex.Unlock()
			return
		}
		cur := e.current
		step := e.difficulty - e.progress
		e.mutex.Unlock()

		if step > n {
			step = n
		}
		cur = Evaluate(cur, step)

		e.mutex.Lock()
		e.current = cur
		e.progress += step
		e.total += step
		if e.progress == e.difficulty {
			e.lastProof = &Proof{Seed: e.seed, Output: cur, Iterations: e.difficulty}
			e.proofs++
			e.seed = cur
			e.progress = 0
		}
		e.mutex.Unlock()
		n -= step
	}
}

// Run computes iterations until ctx is cancelled, then reports the engine inactive.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("VDF worker started", "difficulty", e.difficulty)
	defer e.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info("VDF worker stopped", "iterations", e.Iterations())
			return nil
		default:
		}
		e.Compute(e.batchSize)
	}
}

// Tick folds the progress made since the previous tick into a new State. elapsed is
// wall-clock time since the engine started. A tick that sees no new iterations, or a
// clock that did not move forward, yields IsActive=false.
func (e *Engine) Tick(elapsed time.Duration) State {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	mono := e.monoClock()
	active := !e.stopped
	if e.ticked {
		if elapsed <= e.lastElapsed || mono <= e.lastMono {
			if active {
				e.log.Warn("Clock anomaly detected, withholding VDF credit", "elapsed", elapsed, "prevElapsed", e.lastElapsed)
			}
			active = false
		} else if e.total == e.lastTotal {
			if active {
				e.log.Warn("VDF computation stalled", "iterations", e.total)
			}
			active = false
		} else {
			seconds := (elapsed - e.lastElapsed).Seconds()
			e.rates = append(e.rates, decimal.NewFromFloat(float64(e.total-e.lastTotal)/seconds))
			if len(e.rates) > e.rateWindow {
				e.rates = e.rates[1:]
			}
		}
	} else {
		active = active && e.total > 0
	}

	e.ticked = true
	e.lastElapsed = elapsed
	e.lastTotal = e.total
	e.lastMono = mono

	state := State{
		Difficulty: e.difficulty,
		IsActive:   active,
	}
	if active && len(e.rates) > 0 {
		state.IterationsPerSecond, _ = decimal.Avg(e.rates[0], e.rates[1:]...).Float64()
	}
	e.state.Store(state)
	return state
}

func (e *Engine) State() State {
	return e.state.Load().(State)
}

func (e *Engine) LastProof() *Proof {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.lastProof == nil {
		return nil
	}
	p := *e.lastProof
	return &p
}

func (e *Engine) Proofs() uint64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.proofs
}

func (e *Engine) Iterations() uint64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.total
}

// Stop makes the engine permanently inactive.
func (e *Engine) Stop() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.stopped = true
	e.rates = nil
	e.state.Store(State{Difficulty: e.difficulty})
}
