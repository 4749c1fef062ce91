// Package fanout runs independent branches concurrently and waits for every
// one of them to settle.
package fanout

import (
	"context"
	"fmt"
	"sync"
)

// Outcome is the settled result of one branch: either Value or Err is meaningful.
type Outcome[T any] struct {
	Value T
	Err   error
}

func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Branch is one unit of work in a fan-out.
type Branch[T any] func(ctx context.Context) (T, error)

// SettleAll starts every branch concurrently and returns once all of them have
// returned. A failing branch never cancels its siblings; panics are converted
// into errors on the branch that raised them. Outcomes keep branch order.
func SettleAll[T any](ctx context.Context, branches ...Branch[T]) []Outcome[T] {
	out := make([]Outcome[T], len(branches))
	var wg sync.WaitGroup
	wg.Add(len(branches))
	for i, branch := range branches {
		go func(i int, branch Branch[T]) {
			defer wg.Done()
			out[i] = run(ctx, branch)
		}(i, branch)
	}
	wg.Wait()
	return out
}

// Pair settles two branches of different result types.
func Pair[A, B any](ctx context.Context, a Branch[A], b Branch[B]) (Outcome[A], Outcome[B]) {
	var (
		outA Outcome[A]
		outB Outcome[B]
		wg   sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		outA = run(ctx, a)
	}()
	go func() {
		defer wg.Done()
		outB = run(ctx, b)
	}()
	wg.Wait()
	return outA, outB
}

func run[T any](ctx context.Context, branch Branch[T]) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome[T]{Err: fmt.Errorf("fanout: branch panicked: %v", r)}
		}
	}()
	if branch == nil {
		return Outcome[T]{Err: fmt.Errorf("fanout: nil branch")}
	}
	if err := ctx.Err(); err != nil {
		return Outcome[T]{Err: err}
	}
	v, err := branch(ctx)
	return Outcome[T]{Value: v, Err: err}
}
