package engine

import (
	"context"
	"fmt"
	"sync"

	"updateclient/internal/debug"
)

type outcome struct {
	result Result
	err    error
}

// Pending is the eventual outcome of CheckAsync. It resolves exactly once.
type Pending struct {
	done chan struct{}
	once sync.Once
	out  outcome
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(res Result, err error) {
	p.once.Do(func() {
		p.out = outcome{result: res, err: err}
		close(p.done)
	})
}

// Done is closed once the check has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the check finishes or ctx is done. Abandoning a Pending
// does not stop the check.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.out.result, p.out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// CheckAsync runs Check on its own goroutine. The steps inside one check
// stay sequential; the consent prompt is routed through the engine's
// UIThread.
func (e *Engine) CheckAsync(ctx context.Context, required string, params Params) *Pending {
	p := newPending()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				debug.Warnf("engine: check panicked: %v", r)
				p.resolve(Result{PackageName: params.PackageName, Source: params.Source, RequiredVersion: required},
					fmt.Errorf("update check panicked: %v", r))
			}
		}()
		res, err := e.Check(context.WithoutCancel(ctx), required, params)
		p.resolve(res, err)
	}()
	return p
}
