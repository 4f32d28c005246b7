package synchronization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	otelTrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/finalitylabs/blocksync/engine/common/fifoqueue"
	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/chainsync"
	"github.com/finalitylabs/blocksync/module/component"
	"github.com/finalitylabs/blocksync/module/forest"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/module/metrics"
	"github.com/finalitylabs/blocksync/module/trace"
	"github.com/finalitylabs/blocksync/network"
)

type inboundMessage struct {
	peer chain.PeerID
	data messages.NetworkData
}

type chainEventKind int

const (
	blockImported chainEventKind = iota
	blockFinalized
)

type chainEvent struct {
	kind   chainEventKind
	header chain.Header
}

// Engine is the synchronization engine. It receives messages from the network
// and events from the rest of the node, and feeds them to the handler from a
// single goroutine. It requests missing blocks from peers and periodically
// broadcasts our state.
type Engine struct {
	*component.ComponentManager
	log         zerolog.Logger
	metrics     module.EngineMetrics
	syncMetrics module.SyncMetrics
	config      *Config
	tracer      module.Tracer
	clock       clock.Clock
	net         network.GossipNetwork

	// only accessed by the processing loop
	handler *chainsync.Handler
	tasks   *TaskQueue
	ticker  *Ticker

	inbound          *fifoqueue.FifoQueue[inboundMessage]
	inboundNotifier  module.Notifier
	chainEvents      *fifoqueue.FifoQueue[chainEvent]
	chainNotifier    module.Notifier
	internalRequests *fifoqueue.FifoQueue[chain.BlockID]
	internalNotifier module.Notifier

	primary    *JustificationSubmissions
	additional *JustificationSubmissions

	limiters *lru.Cache[chain.PeerID, *rate.Limiter]

	// closed by the reader once the network reports ErrClosed
	networkClosed chan struct{}
}

// New creates a synchronization engine. The engine takes ownership of the
// handler; it must not be used by anything else afterwards.
func New(
	log zerolog.Logger,
	engineMetrics module.EngineMetrics,
	syncMetrics module.SyncMetrics,
	net network.GossipNetwork,
	handler *chainsync.Handler,
	clk clock.Clock,
	opts ...OptionFunc,
) (*Engine, error) {
	config := DefaultConfig()
	for _, f := range opts {
		f(config)
	}

	inbound, err := fifoqueue.NewFifoQueue(
		fifoqueue.WithCapacity[inboundMessage](config.InboundQueueCapacity),
		fifoqueue.WithLengthObserver[inboundMessage](syncMetrics.InboundQueueLength),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create inbound queue: %w", err)
	}
	chainEvents, err := fifoqueue.NewFifoQueue(fifoqueue.WithCapacity[chainEvent](config.ChainEventQueueCapacity))
	if err != nil {
		return nil, fmt.Errorf("could not create chain event queue: %w", err)
	}
	internalRequests, err := fifoqueue.NewFifoQueue(fifoqueue.WithCapacity[chain.BlockID](config.InternalQueueCapacity))
	if err != nil {
		return nil, fmt.Errorf("could not create internal request queue: %w", err)
	}
	primary, err := newJustificationSubmissions(config.SubmissionCapacity)
	if err != nil {
		return nil, err
	}
	additional, err := newJustificationSubmissions(config.SubmissionCapacity)
	if err != nil {
		return nil, err
	}
	limiters, err := lru.New[chain.PeerID, *rate.Limiter](config.RateLimitedPeers)
	if err != nil {
		return nil, fmt.Errorf("could not create rate limiter cache: %w", err)
	}

	e := &Engine{
		log:              log.With().Str("engine", "synchronization").Logger(),
		metrics:          engineMetrics,
		syncMetrics:      syncMetrics,
		config:           config,
		tracer:           config.Tracer,
		clock:            clk,
		net:              net,
		handler:          handler,
		tasks:            NewTaskQueue(clk),
		ticker:           NewTicker(clk, config.TickPeriod, config.TickCooldown),
		inbound:          inbound,
		inboundNotifier:  module.NewNotifier(),
		chainEvents:      chainEvents,
		chainNotifier:    module.NewNotifier(),
		internalRequests: internalRequests,
		internalNotifier: module.NewNotifier(),
		primary:          primary,
		additional:       additional,
		limiters:         limiters,
		networkClosed:    make(chan struct{}),
	}

	e.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(e.readNetwork).
		AddWorker(e.processingLoop).
		Build()

	return e, nil
}

// Submissions returns the primary justification submission queue. Handling a
// primary submission that moves finalization forward triggers a state
// broadcast, subject to the broadcast cooldown.
func (e *Engine) Submissions() *JustificationSubmissions {
	return e.primary
}

// AdditionalSubmissions returns a justification submission queue that does
// not trigger state broadcasts.
func (e *Engine) AdditionalSubmissions() *JustificationSubmissions {
	return e.additional
}

// OnBlockImported is called by the import pipeline once a block is in the database.
func (e *Engine) OnBlockImported(header chain.Header) {
	e.pushChainEvent(chainEvent{kind: blockImported, header: header})
}

// OnBlockFinalized is called once a block was finalized.
func (e *Engine) OnBlockFinalized(header chain.Header) {
	e.pushChainEvent(chainEvent{kind: blockFinalized, header: header})
}

func (e *Engine) pushChainEvent(event chainEvent) {
	if !e.chainEvents.Push(event) {
		e.metrics.InboundMessageDropped(metrics.EngineSynchronization, metrics.MessageChainEvent)
		e.log.Warn().Stringer("block", event.header.ID()).Msg("chain event queue full, dropping event")
		return
	}
	e.chainNotifier.Notify()
}

// RequestBlock asks the engine to obtain the given block, for example because
// another subsystem depends on it.
func (e *Engine) RequestBlock(id chain.BlockID) {
	if !e.internalRequests.Push(id) {
		e.metrics.InboundMessageDropped(metrics.EngineSynchronization, metrics.MessageInternalRequest)
		e.log.Warn().Stringer("block", id).Msg("internal request queue full, dropping request")
		return
	}
	e.internalNotifier.Notify()
}

// readNetwork moves messages from the network into the inbound queue, so the
// processing loop is never blocked on the network.
func (e *Engine) readNetwork(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	for {
		data, peer, err := e.net.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, network.ErrClosed) {
				e.log.Info().Msg("network closed, stopping")
				close(e.networkClosed)
				return
			}
			e.log.Warn().Err(err).Str("peer", peer.String()).Msg("could not receive message")
			continue
		}
		e.metrics.MessageReceived(metrics.EngineSynchronization, data.Kind())
		if !e.inbound.Push(inboundMessage{peer: peer, data: data}) {
			e.metrics.InboundMessageDropped(metrics.EngineSynchronization, data.Kind())
			continue
		}
		e.inboundNotifier.Notify()
	}
}

// processingLoop is the only goroutine using the handler. It stops when the
// context is cancelled or the network was closed. Pending tasks are dropped.
func (e *Engine) processingLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	e.broadcastState()

	for {
		e.processDueTasks()
		if e.ticker.Due() {
			e.ticker.Tick()
			e.broadcastState()
		}

		timer := e.clock.Timer(e.nextWakeup())

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-e.networkClosed:
			timer.Stop()
			return
		case <-e.inboundNotifier.Channel():
			e.processInbound(ctx)
		case <-e.chainNotifier.Channel():
			e.processChainEvents(ctx)
		case <-e.internalNotifier.Channel():
			e.processInternalRequests(ctx)
		case <-e.primary.channel():
			e.processSubmissions(ctx, e.primary, true)
		case <-e.additional.channel():
			e.processSubmissions(ctx, e.additional, false)
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (e *Engine) nextWakeup() time.Duration {
	wakeup := e.ticker.Deadline()
	if deadline, ok := e.tasks.NextDeadline(); ok && deadline.Before(wakeup) {
		wakeup = deadline
	}
	wait := wakeup.Sub(e.clock.Now())
	if wait < 0 {
		return 0
	}
	return wait
}

func (e *Engine) processInbound(ctx irrecoverable.SignalerContext) {
	for ctx.Err() == nil {
		msg, ok := e.inbound.Pop()
		if !ok {
			return
		}
		e.handleNetworkData(ctx, msg.data, msg.peer)
		e.metrics.MessageHandled(metrics.EngineSynchronization, msg.data.Kind())
	}
}

func (e *Engine) handleNetworkData(ctx context.Context, data messages.NetworkData, peer chain.PeerID) {
	lg := e.log.With().Str("peer", peer.String()).Str("message", data.Kind()).Logger()
	span, ctx := e.tracer.StartSpanFromContext(ctx, trace.SyncHandleMessage, otelTrace.WithAttributes(
		attribute.String("peer", peer.String()),
		attribute.String("message", data.Kind()),
	))
	defer span.End()

	switch msg := data.(type) {
	case *messages.StateBroadcast:
		e.handleState(ctx, msg.State, peer, lg)

	case *messages.StateBroadcastResponse:
		justifications := []chain.UnverifiedJustification{msg.Justification}
		if msg.Extra != nil {
			justifications = append(justifications, *msg.Extra)
		}
		highest, err := e.handler.HandleJustifications(justifications, &peer)
		if err != nil {
			trace.RecordError(span, err)
			lg.Warn().Err(err).Msg("could not handle justifications")
		}
		if highest != nil {
			e.schedule(*highest, TierRequest)
		}

	case *messages.Request:
		e.handleRequest(ctx, msg, peer, lg)
		// a request carries the state of the requester
		e.handleState(ctx, msg.State, peer, lg)

	case *messages.RequestResponse:
		highest, err := e.handler.HandleRequestResponse(msg.Justifications, msg.Headers, msg.Blocks, peer)
		if err != nil {
			trace.RecordError(span, err)
			lg.Warn().Err(err).Msg("could not handle request response")
		}
		if highest != nil {
			e.schedule(*highest, TierRequest)
		}

	default:
		lg.Error().Msgf("unexpected message type %T", data)
	}
}

func (e *Engine) handleState(ctx context.Context, state messages.State, peer chain.PeerID, lg zerolog.Logger) {
	action, err := e.handler.HandleState(state, peer)
	if err != nil {
		trace.RecordError(otelTrace.SpanFromContext(ctx), err)
		lg.Warn().Err(err).Msg("could not handle state")
		return
	}
	switch action.Kind {
	case chainsync.Response:
		e.sendTo(action.Response, peer)
	case chainsync.HighestJustified:
		e.schedule(action.Justified, TierRequest)
	}
}

func (e *Engine) handleRequest(ctx context.Context, request *messages.Request, peer chain.PeerID, lg zerolog.Logger) {
	if !e.allowRequest(peer) {
		e.syncMetrics.RequestRateLimited()
		e.metrics.OutboundMessageDropped(metrics.EngineSynchronization, metrics.MessageRequestResponse)
		otelTrace.SpanFromContext(ctx).SetAttributes(attribute.Bool("rate_limited", true))
		lg.Debug().Msg("request rate limit exceeded, not responding")
		return
	}
	response, err := e.handler.HandleRequest(*request)
	if err != nil {
		trace.RecordError(otelTrace.SpanFromContext(ctx), err)
		lg.Warn().Err(err).Stringer("target", request.Target).Msg("could not handle request")
		return
	}
	if response == nil {
		return
	}
	e.sendTo(response, peer)
}

func (e *Engine) allowRequest(peer chain.PeerID) bool {
	limiter, ok := e.limiters.Get(peer)
	if !ok {
		limiter = rate.NewLimiter(e.config.RequestRateLimit, e.config.RequestRateBurst)
		e.limiters.Add(peer, limiter)
	}
	return limiter.AllowN(e.clock.Now(), 1)
}

func (e *Engine) processChainEvents(ctx irrecoverable.SignalerContext) {
	for ctx.Err() == nil {
		event, ok := e.chainEvents.Pop()
		if !ok {
			return
		}
		span, _ := e.tracer.StartSpanFromContext(ctx, trace.SyncHandleChainEvent, otelTrace.WithAttributes(
			attribute.String("block", event.header.ID().String()),
			attribute.Bool("finalized", event.kind == blockFinalized),
		))
		switch event.kind {
		case blockImported:
			err := e.handler.BlockImported(event.header)
			if err != nil {
				trace.RecordError(span, err)
				e.log.Warn().Err(err).Stringer("block", event.header.ID()).Msg("could not handle imported block")
			}
		case blockFinalized:
			if e.ticker.TryTick() {
				e.broadcastState()
			}
		}
		span.End()
		e.metrics.MessageHandled(metrics.EngineSynchronization, metrics.MessageChainEvent)
	}
}

func (e *Engine) processInternalRequests(ctx irrecoverable.SignalerContext) {
	for ctx.Err() == nil {
		id, ok := e.internalRequests.Pop()
		if !ok {
			return
		}
		newlyRequired, err := e.handler.HandleInternalRequest(id)
		if err != nil {
			e.log.Warn().Err(err).Stringer("block", id).Msg("could not handle internal request")
			continue
		}
		if newlyRequired {
			e.schedule(id, TierRequest)
		}
		e.metrics.MessageHandled(metrics.EngineSynchronization, metrics.MessageInternalRequest)
	}
}

func (e *Engine) processSubmissions(ctx irrecoverable.SignalerContext, submissions *JustificationSubmissions, primary bool) {
	for ctx.Err() == nil {
		justification, ok := submissions.pop()
		if !ok {
			return
		}
		e.handleSubmission(ctx, justification, primary)
	}
}

func (e *Engine) handleSubmission(ctx context.Context, justification chain.UnverifiedJustification, primary bool) {
	span, _ := e.tracer.StartSpanFromContext(ctx, trace.SyncHandleSubmissions, otelTrace.WithAttributes(
		attribute.String("block", justification.ID().String()),
		attribute.Bool("primary", primary),
	))
	defer span.End()

	before := e.topFinalizedNumber()
	id, err := e.handler.HandleJustification(justification, nil)
	if err != nil {
		trace.RecordError(span, err)
		e.log.Warn().Err(err).Stringer("block", justification.ID()).Msg("could not handle submitted justification")
		return
	}
	e.metrics.MessageHandled(metrics.EngineSynchronization, metrics.MessageJustificationSubmitted)
	if id == nil {
		return
	}
	e.schedule(*id, TierRequest)
	if primary && e.topFinalizedNumber() > before && e.ticker.TryTick() {
		e.broadcastState()
	}
}

func (e *Engine) topFinalizedNumber() uint32 {
	state, err := e.handler.State()
	if err != nil {
		return 0
	}
	return state.TopJustification.Header.Number
}

// processDueTasks requests every due block we are still interested in and
// schedules a retry for it.
func (e *Engine) processDueTasks() {
	var due []chain.BlockID
	for {
		id, ok := e.tasks.Pop()
		if !ok {
			break
		}
		due = append(due, id)
	}

	for _, id := range due {
		interest := e.handler.BlockState(id)
		var retry string
		switch interest.Kind {
		case forest.Uninterested:
			continue
		case forest.Required:
			retry = TierBackupRequest
		case forest.TopRequired:
			retry = TierDelayedRequest
		}

		state, err := e.handler.State()
		if err != nil {
			e.log.Warn().Err(err).Msg("could not read our state for a request")
			e.schedule(id, retry)
			continue
		}
		request := &messages.Request{
			Target:          id,
			BranchKnowledge: interest.BranchKnowledge,
			State:           state,
		}
		err = e.net.SendToRandom(request, interest.KnowMost)
		if err != nil {
			e.metrics.OutboundMessageDropped(metrics.EngineSynchronization, metrics.MessageRequest)
			e.log.Debug().Err(err).Stringer("block", id).Msg("could not send request")
		} else {
			e.metrics.MessageSent(metrics.EngineSynchronization, metrics.MessageRequest)
		}
		e.schedule(id, retry)
	}
}

func (e *Engine) schedule(id chain.BlockID, tier string) {
	var delay time.Duration
	switch tier {
	case TierRequest:
		delay = e.config.RequestDelay
	case TierDelayedRequest:
		delay = e.config.DelayedRequestDelay
	default:
		delay = e.config.BackupRequestDelay
	}
	e.tasks.ScheduleIn(id, delay)
	e.syncMetrics.TaskScheduled(tier)
}

func (e *Engine) broadcastState() {
	state, err := e.handler.State()
	if err != nil {
		e.log.Warn().Err(err).Msg("could not read our state for broadcast")
		return
	}
	err = e.net.Broadcast(&messages.StateBroadcast{State: state})
	if err != nil {
		e.metrics.OutboundMessageDropped(metrics.EngineSynchronization, metrics.MessageStateBroadcast)
		e.log.Debug().Err(err).Msg("could not broadcast state")
		return
	}
	e.metrics.MessageSent(metrics.EngineSynchronization, metrics.MessageStateBroadcast)
}

func (e *Engine) sendTo(data messages.NetworkData, peer chain.PeerID) {
	err := e.net.SendTo(data, peer)
	if err != nil {
		e.metrics.OutboundMessageDropped(metrics.EngineSynchronization, data.Kind())
		e.log.Debug().Err(err).Str("peer", peer.String()).Str("message", data.Kind()).Msg("could not send message")
		return
	}
	e.metrics.MessageSent(metrics.EngineSynchronization, data.Kind())
}
