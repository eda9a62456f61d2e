package txn

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sethvargo/go-retry"
)

var Logger = logger.GetLogger("txn")

// TimestampLayout is the format of created_at and updated_at (ISO-8601, UTC, milliseconds)
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Operation transforms a document. It may change d in place and return nil,
// or return a replacement document. The context is cancelled when the
// transaction times out or is cancelled; operations should honour it.
type Operation func(ctx context.Context, d doc.Document) (doc.Document, error)

// Result describes a finished transaction. It is returned together with the
// error of failed transactions, so the counters are always available.
type Result struct {
	// Doc is the final document (nil unless the transaction succeeded)
	Doc      doc.Document
	Fetches  int
	Stores   int
	Tries    int
	IsCreate bool
}

// --------------------------------------------------------------------------
// Transaction
// --------------------------------------------------------------------------

// Transaction is a running read-modify-write cycle on one document.
//
// All state below the loop marker is owned by the event loop goroutine.
// Timers, backend calls and the operation run elsewhere and report back by
// posting exactly one event each.
type Transaction struct {
	name    string
	loc     Locator
	cfg     Config
	op      Operation
	backend Backend

	ctx    context.Context
	cancel context.CancelFunc

	events  chan event
	started chan struct{}
	closed  chan struct{}
	done    chan struct{}

	// cancelCh holds at most one pending cancel request
	cancelCh   chan struct{}
	cancelOnce sync.Once

	// written once before done is closed
	result Result
	err    error

	// ---- loop state ----

	preload    doc.Document
	fetches    int
	stores     int
	tries      int
	isCreate   bool
	retryTimer *time.Timer
	opTimer    *time.Timer
	opSeq      uint64
	opCancel   context.CancelFunc
	backoff    retry.Backoff
	inflight   int
	finished   bool
}

// Start validates the request and the config, resolves the locator and starts
// the transaction. Configuration and addressing errors are returned here,
// before any I/O. The outcome is reported through Done, Wait or Do.
func Start(req Request, op Operation, cfg Config) (*Transaction, error) {
	if op == nil {
		return nil, fmt.Errorf("%w: operation required", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	loc, err := Resolve(req, cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transaction{
		name:     txnName(req.Name, op),
		loc:      loc,
		cfg:      cfg,
		op:       op,
		backend:  newBackend(loc, cfg),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan event),
		started:  make(chan struct{}),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
		cancelCh: make(chan struct{}, 1),
		backoff:  newBackoff(cfg),
	}
	if req.Doc != nil {
		t.preload = req.Doc.Clone()
	}

	go t.loop()

	// the caller owns the handle before anything happens
	close(t.started)
	return t, nil
}

// Name returns the name used in logs and events
func (t *Transaction) Name() string {
	return t.name
}

// Locator returns the resolved address of the document
func (t *Transaction) Locator() Locator {
	return t.loc
}

// Done is closed once the transaction reached its terminal outcome
func (t *Transaction) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the transaction finished or ctx is done.
// Giving up on ctx does not cancel the transaction.
func (t *Transaction) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-t.done:
		res := t.result
		return &res, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel stops the transaction: outstanding timers are cleared, in-flight
// calls are cancelled and the transaction ends with ErrCancelled.
// Cancelling a finished transaction has no effect. Cancel never blocks and
// may be called from the Observer.
func (t *Transaction) Cancel() {
	t.cancelOnce.Do(func() {
		t.cancelCh <- struct{}{}
	})
}

// Do starts a transaction and waits for its outcome.
// If ctx ends first, the transaction is cancelled.
func Do(ctx context.Context, req Request, op Operation, cfg Config) (*Result, error) {
	t, err := Start(req, op, cfg)
	if err != nil {
		return nil, err
	}

	select {
	case <-t.done:
	case <-ctx.Done():
		t.Cancel()
		<-t.done
	}

	res := t.result
	if errors.Is(t.err, ErrCancelled) && ctx.Err() != nil {
		return &res, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	return &res, t.err
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

type event interface{}

type (
	retryEvent   struct{}
	fetchedEvent struct {
		reply Reply
		err   error
	}
	opDoneEvent struct {
		seq      uint64
		doc      doc.Document
		out      doc.Document
		err      error
		original doc.Document
		isCreate bool
	}
	opTimeoutEvent struct {
		seq uint64
	}
	storedEvent struct {
		reply Reply
		err   error
		doc   doc.Document
	}
)

// post hands an event to the loop. After the loop exited it is dropped.
func (t *Transaction) post(ev event) {
	select {
	case t.events <- ev:
	case <-t.closed:
	}
}

// spawn runs fn off the loop and posts its event. The loop stays alive until
// every spawned call reported back.
func (t *Transaction) spawn(fn func() event) {
	t.inflight++
	go func() {
		t.post(fn())
	}()
}

func (t *Transaction) loop() {
	defer close(t.closed)
	<-t.started

	t.attempt()
	for !t.finished || t.inflight > 0 {
		// a pending cancel wins over events that are ready at the same time
		select {
		case <-t.cancelCh:
			t.onCancel()
			continue
		default:
		}

		var ev event
		select {
		case <-t.cancelCh:
			t.onCancel()
			continue
		case ev = <-t.events:
		}

		switch ev := ev.(type) {
		case retryEvent:
			t.onRetry()
		case fetchedEvent:
			t.inflight--
			t.onFetched(ev)
		case opDoneEvent:
			t.inflight--
			t.onOpDone(ev)
		case opTimeoutEvent:
			t.onOpTimeout(ev)
		case storedEvent:
			t.inflight--
			t.onStored(ev)
		}
	}
}

// emit delivers an event to the observer, the log and the metrics
func (t *Transaction) emit(ev Event) {
	ev.Txn = t.name
	if ev.Tries == 0 {
		ev.Tries = t.tries
	}
	countEvent(ev.Type)
	if t.cfg.Observer != nil {
		t.cfg.Observer(ev)
	}
}

// --------------------------------------------------------------------------
// State machine
// --------------------------------------------------------------------------

func (t *Transaction) attempt() {
	if t.tries >= t.cfg.MaxTries {
		Logger.Debugf("too many tries (%s): %d", t.name, t.tries)
		t.finish(nil, &ExhaustedError{Tries: t.tries}, Event{Type: EventExhausted})
		return
	}

	if t.retryTimer != nil {
		t.fail(fmt.Errorf("%w: retry timer already set: %s", ErrInternal, t.name))
		return
	}

	var delay time.Duration
	switch {
	case t.tries == 0 && t.cfg.After == 0:
		t.onRetry()
		return
	case t.tries == 0:
		delay = t.cfg.After
		Logger.Debugf("initial delay before first run (%s): %s", t.name, delay)
	default:
		delay = t.nextDelay()
		Logger.Debugf("delay until next attempt (%s): %s", t.name, delay)
	}

	t.retryTimer = time.AfterFunc(delay, func() {
		t.post(retryEvent{})
	})
}

func (t *Transaction) onRetry() {
	if t.finished {
		return
	}
	t.retryTimer = nil
	t.tries++
	t.emit(Event{Type: EventAttempt})
	t.run()
}

func (t *Transaction) run() {
	Logger.Debugf("transaction %s (%d/%d): %s", t.name, t.tries, t.cfg.MaxTries, t.loc)

	if t.preload != nil {
		d := t.preload
		t.preload = nil
		Logger.Debugf("skip fetch, assuming known doc: %s", d.ID())
		t.isCreate = !d.HasRev()
		t.runOp(d, t.isCreate)
		return
	}

	t.fetches++
	t.spawn(func() event {
		reply, err := t.backend.Get(t.ctx)
		return fetchedEvent{reply: reply, err: err}
	})
}

func (t *Transaction) onFetched(ev fetchedEvent) {
	if t.finished {
		return
	}

	isCreate := t.cfg.Create && ev.reply.IsNotFound()
	if ev.err != nil && !isCreate {
		t.fail(ev.err)
		return
	}

	d := ev.reply.Body
	t.isCreate = isCreate
	if isCreate {
		d = doc.New(t.loc.ID)
		Logger.Debugf("create new doc: %s", d)
	}
	t.runOp(d, isCreate)
}

func (t *Transaction) runOp(d doc.Document, isCreate bool) {
	if d.ID() == "" {
		t.fail(fmt.Errorf("%w: %s", ErrMissingID, d))
		return
	}
	if !d.HasRev() && !isCreate {
		t.fail(fmt.Errorf("%w: %s", ErrMissingRev, d))
		return
	}
	if t.opTimer != nil {
		t.fail(fmt.Errorf("%w: op timer already set: %s", ErrInternal, t.name))
		return
	}

	Logger.Debugf("run operation (create=%t): %s", isCreate, d.ID())
	original := d.Clone()

	t.opSeq++
	seq := t.opSeq
	t.opTimer = time.AfterFunc(t.cfg.Timeout, func() {
		t.post(opTimeoutEvent{seq: seq})
	})

	opCtx, opCancel := context.WithCancel(t.ctx)
	t.opCancel = opCancel

	op := t.op
	t.spawn(func() (ev event) {
		defer func() {
			if r := recover(); r != nil {
				ev = opDoneEvent{seq: seq, err: fmt.Errorf("operation panicked: %v", r)}
			}
		}()
		out, err := op(opCtx, d)
		return opDoneEvent{seq: seq, doc: d, out: out, err: err, original: original, isCreate: isCreate}
	})
}

func (t *Transaction) onOpTimeout(ev opTimeoutEvent) {
	if t.finished || ev.seq != t.opSeq || t.opTimer == nil {
		return
	}
	t.opTimer = nil
	t.finish(nil, ErrTimeout, Event{Type: EventTimeout})
}

func (t *Transaction) onOpDone(ev opDoneEvent) {
	if t.finished || ev.seq != t.opSeq {
		Logger.Debugf("ignore operation after timeout (%s)", t.name)
		t.emit(Event{Type: EventIgnore})
		return
	}

	t.stopOpTimer()

	if ev.err != nil {
		t.fail(ev.err)
		return
	}

	d := ev.doc
	if ev.out != nil {
		Logger.Debugf("use new doc: %s", ev.out)
		t.emit(Event{Type: EventReplace, Doc: ev.out, Previous: d})
		d = ev.out
	}

	id, rev := ev.original.ID(), ev.original.Rev()
	changes := t.cfg.Diff(ev.original, d)
	Logger.Debugf("operation diff (%s): %s", t.name, changes)

	d.SetID(id)
	if rev != "" {
		d.SetRev(rev)
	}

	if !ev.isCreate && changes.Empty() {
		Logger.Debugf("skip txn update for unchanged doc: %s", id)
		t.finish(d, nil, Event{Type: EventDone, Doc: d})
		return
	}

	t.emit(Event{Type: EventChange, Changes: changes})

	if t.cfg.Timestamps {
		now := t.cfg.Now().UTC().Format(TimestampLayout)
		d[doc.FieldUpdatedAt] = now
		if _, ok := d[doc.FieldCreatedAt]; ev.isCreate && !ok {
			d[doc.FieldCreatedAt] = now
		}
	}

	Logger.Debugf("update transaction (%s): %s", t.name, t.loc)
	t.stores++
	t.spawn(func() event {
		reply, err := t.backend.Put(t.ctx, d)
		return storedEvent{reply: reply, err: err, doc: d}
	})
}

func (t *Transaction) onStored(ev storedEvent) {
	if t.finished {
		return
	}

	if ev.err != nil && ev.reply.IsConflict() {
		Logger.Debugf("conflict: %s", t.name)
		t.emit(Event{Type: EventConflict})
		t.attempt()
		return
	}
	if ev.err != nil {
		t.fail(ev.err)
		return
	}

	rev, _ := ev.reply.Body["rev"].(string)
	ev.doc.SetRev(rev)
	t.finish(ev.doc, nil, Event{Type: EventDone, Doc: ev.doc})
}

func (t *Transaction) onCancel() {
	if t.finished {
		return
	}
	Logger.Debugf("cancelling transaction try: %d", t.tries)
	t.finish(nil, ErrCancelled, Event{Type: EventCancel})
}

// --------------------------------------------------------------------------
// Terminal handling
// --------------------------------------------------------------------------

func (t *Transaction) fail(err error) {
	Logger.Debugf("transaction %s failed: %v", t.name, err)
	t.finish(nil, err, Event{Type: EventError, Err: err})
}

// finish records the one terminal outcome. Completion is signalled from a new
// goroutine, never inline on the loop.
func (t *Transaction) finish(d doc.Document, err error, ev Event) {
	if t.finished {
		return
	}
	t.finished = true

	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
	t.stopOpTimer()

	t.emit(ev)

	t.result = Result{
		Doc:      d,
		Fetches:  t.fetches,
		Stores:   t.stores,
		Tries:    t.tries,
		IsCreate: t.isCreate,
	}
	t.err = err
	t.cancel()

	go close(t.done)
}

func (t *Transaction) stopOpTimer() {
	if t.opTimer != nil {
		t.opTimer.Stop()
		t.opTimer = nil
	}
	if t.opCancel != nil {
		t.opCancel()
		t.opCancel = nil
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// newBackoff returns Delay*2, Delay*4, ... for the retries after try 1, 2, ...
// A zero delay retries immediately.
func newBackoff(cfg Config) retry.Backoff {
	if cfg.Delay <= 0 {
		return nil
	}
	b := retry.NewExponential(2 * cfg.Delay)
	if cfg.MaxDelay > 0 {
		b = retry.WithCappedDuration(cfg.MaxDelay, b)
	}
	return b
}

func (t *Transaction) nextDelay() time.Duration {
	if t.backoff == nil {
		return 0
	}
	d, stop := t.backoff.Next()
	if stop {
		// overflow: stay at the cap, or the largest representable delay
		if t.cfg.MaxDelay > 0 {
			return t.cfg.MaxDelay
		}
		return time.Duration(1<<63 - 1)
	}
	return d
}

// txnName returns name, or the name of the operation's function
func txnName(name string, op Operation) string {
	if name != "" {
		return name
	}
	if fn := runtime.FuncForPC(reflect.ValueOf(op).Pointer()); fn != nil {
		full := fn.Name()
		if i := strings.LastIndex(full, "/"); i >= 0 {
			full = full[i+1:]
		}
		if full != "" {
			return full
		}
	}
	return "Untitled"
}
