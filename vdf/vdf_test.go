package vdf

import (
	"context"
	"github.com/patience-network/patience-go/crypto"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type fakeMono struct {
	now uint64
}

func (f *fakeMono) Now() uint64 {
	f.now += uint64(time.Second)
	return f.now
}

func newTestEngine(difficulty uint64) *Engine {
	e := NewEngine(crypto.Hash([]byte("node")), difficulty, 10, 3)
	e.SetMonoClock((&fakeMono{}).Now)
	return e
}

func TestEvaluateIsSequentialChain(t *testing.T) {
	seed := crypto.Hash([]byte("seed"))
	require.Equal(t, seed, Evaluate(seed, 0))
	require.Equal(t, crypto.Hash(seed[:]), Evaluate(seed, 1))
	mid := Evaluate(seed, 7)
	require.Equal(t, Evaluate(seed, 12), Evaluate(mid, 5))
}

func TestProof_Verify(t *testing.T) {
	seed := crypto.Hash([]byte("seed"))
	p := &Proof{Seed: seed, Output: Evaluate(seed, 50), Iterations: 50}
	require.True(t, p.Verify(50))
	require.False(t, p.Verify(51))

	p.Output[0] ^= 0xff
	require.False(t, p.Verify(50))
	require.False(t, (*Proof)(nil).Verify(50))

	restored, err := ProofFromBytes((&Proof{Seed: seed, Output: Evaluate(seed, 50), Iterations: 50}).Bytes())
	require.NoError(t, err)
	require.True(t, restored.Verify(50))

	_, err = ProofFromBytes([]byte{0x1})
	require.Error(t, err)
}

func TestEngine_ComputeChainsProofs(t *testing.T) {
	e := newTestEngine(25)
	require.Nil(t, e.LastProof())

	e.Compute(30)
	first := e.LastProof()
	require.NotNil(t, first)
	require.True(t, first.Verify(25))
	require.Equal(t, uint64(1), e.Proofs())

	e.Compute(20)
	second := e.LastProof()
	require.Equal(t, uint64(2), e.Proofs())
	require.True(t, second.Verify(25))
	require.Equal(t, first.Output, second.Seed)
	require.Equal(t, uint64(50), e.Iterations())
}

func TestEngine_ZeroDifficulty(t *testing.T) {
	e := newTestEngine(0)
	require.Equal(t, uint64(1), e.Difficulty())

	e.Compute(3)
	require.Equal(t, uint64(3), e.Proofs())
	require.Equal(t, uint64(3), e.Iterations())
	require.True(t, e.LastProof().Verify(1))
	require.Equal(t, uint64(1), e.State().Difficulty)
}

func TestEngine_Tick(t *testing.T) {
	e := newTestEngine(100)

	state := e.Tick(time.Second)
	require.False(t, state.IsActive, "no work done yet")
	require.Equal(t, uint64(100), state.Difficulty)

	e.Compute(40)
	state = e.Tick(2 * time.Second)
	require.True(t, state.IsActive)
	require.InDelta(t, 40, state.IterationsPerSecond, 0.001)

	e.Compute(80)
	state = e.Tick(4 * time.Second)
	require.True(t, state.IsActive)
	require.InDelta(t, 40, state.IterationsPerSecond, 0.001)

	e.Compute(20)
	state = e.Tick(6 * time.Second)
	require.InDelta(t, 30, state.IterationsPerSecond, 0.001)

	// stall: no iterations between ticks
	state = e.Tick(7 * time.Second)
	require.False(t, state.IsActive)
	require.Equal(t, float64(0), state.IterationsPerSecond)

	// rollback: wall clock went backwards even though work was done
	e.Compute(10)
	state = e.Tick(3 * time.Second)
	require.False(t, state.IsActive)

	// recovers once time moves forward again from the new baseline
	e.Compute(10)
	state = e.Tick(4 * time.Second)
	require.True(t, state.IsActive)
	require.Equal(t, state, e.State())
}

func TestEngine_MonotonicClockRollback(t *testing.T) {
	e := NewEngine(crypto.Hash([]byte("node")), 100, 10, 3)
	mono := uint64(100)
	e.SetMonoClock(func() uint64 { return mono })

	e.Compute(10)
	require.True(t, e.Tick(time.Second).IsActive)

	e.Compute(10)
	mono = 50
	require.False(t, e.Tick(2*time.Second).IsActive)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	e := newTestEngine(1000)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- e.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		return e.Iterations() > 0
	}, time.Second*5, time.Millisecond*10)
	cancel()
	require.NoError(t, <-done)

	iterations := e.Iterations()
	e.Compute(100)
	require.Equal(t, iterations, e.Iterations(), "stopped engine does no work")
	require.False(t, e.Tick(time.Hour).IsActive)
	require.False(t, e.State().IsActive)
}
