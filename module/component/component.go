package component

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"

	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/module/util"
)

// ErrMultipleStartup is the panic value when a component is started twice.
var ErrMultipleStartup = errors.New("component may only be started once")

// Component can be started once and exposes channels that close when startup
// and shutdown have completed.
type Component interface {
	module.Startable
	module.ReadyDoneAware
}

// ReadyFunc is called by a worker once it is ready.
type ReadyFunc func()

// ComponentWorker is a worker routine of a component. It must call ready once
// it has finished its startup and return when ctx is cancelled.
type ComponentWorker func(ctx irrecoverable.SignalerContext, ready ReadyFunc)

type ComponentManagerBuilder interface {
	AddWorker(ComponentWorker) ComponentManagerBuilder
	Build() *ComponentManager
}

type componentManagerBuilderImpl struct {
	workers []ComponentWorker
}

func NewComponentManagerBuilder() ComponentManagerBuilder {
	return &componentManagerBuilderImpl{}
}

// AddWorker is not concurrency-safe.
func (c *componentManagerBuilderImpl) AddWorker(worker ComponentWorker) ComponentManagerBuilder {
	c.workers = append(c.workers, worker)
	return c
}

func (c *componentManagerBuilderImpl) Build() *ComponentManager {
	return &ComponentManager{
		started:     atomic.NewBool(false),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		workersDone: make(chan struct{}),
		workers:     c.workers,
	}
}

var _ Component = (*ComponentManager)(nil)

// ComponentManager runs the worker routines of a component. Ready closes once
// every worker called its ReadyFunc, Done closes after every worker returned.
//
// Shutdown is signalled by cancelling the context passed to Start. An
// irrecoverable error thrown by one worker cancels the others and is thrown
// on the parent context.
type ComponentManager struct {
	started     *atomic.Bool
	ready       chan struct{}
	done        chan struct{}
	workersDone chan struct{}

	workers []ComponentWorker
}

func (c *ComponentManager) Start(parent irrecoverable.SignalerContext) {
	if !c.started.CompareAndSwap(false, true) {
		panic(ErrMultipleStartup)
	}

	ctx, cancel := context.WithCancel(parent)
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	go func() {
		// errors must reach the parent before done is closed
		defer func() {
			<-c.workersDone
			close(c.done)
		}()

		if err := util.WaitError(errChan, c.workersDone); err != nil {
			cancel()
			parent.Throw(err)
		}
		cancel()
	}()

	var workersReady sync.WaitGroup
	var workersDone sync.WaitGroup
	workersReady.Add(len(c.workers))
	workersDone.Add(len(c.workers))

	for _, worker := range c.workers {
		worker := worker
		go func() {
			defer workersDone.Done()
			var readyOnce sync.Once
			worker(signalerCtx, func() {
				readyOnce.Do(workersReady.Done)
			})
		}()
	}

	go func() {
		workersReady.Wait()
		close(c.ready)
	}()
	go func() {
		workersDone.Wait()
		close(c.workersDone)
	}()
}

func (c *ComponentManager) Ready() <-chan struct{} {
	return c.ready
}

func (c *ComponentManager) Done() <-chan struct{} {
	return c.done
}
