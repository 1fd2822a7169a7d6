package livesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"chat-widget/internal/edit"
	"chat-widget/internal/log"
	"chat-widget/internal/models"
	"chat-widget/internal/observability"
	"chat-widget/internal/render"
	"chat-widget/internal/store"
	"chat-widget/internal/telemetry"
)

// ErrStopped is returned by Snapshot once Run has returned.
var ErrStopped = errors.New("controller stopped")

// State is the lifecycle state of a Controller.
type State int

const (
	// StateLoading lasts until the first subscription batch is applied.
	StateLoading State = iota
	// StateLive is terminal.
	StateLive
)

func (s State) String() string {
	if s == StateLive {
		return "live"
	}
	return "loading"
}

// Result is the outcome of one store call issued by a Controller.
type Result struct {
	Op       string
	ID       string
	Err      error
	Duration time.Duration
}

// Snapshot is a point-in-time copy of a Controller's view.
type Snapshot struct {
	State    State
	Items    []models.Message
	EditID   string
	EditOpen bool
}

// Controller keeps one client's rendered message list in sync with the
// store's ordered view. All view state is owned by the goroutine running Run;
// the exported intent methods only enqueue work onto it.
type Controller struct {
	store    store.MessageStore
	renderer *render.Renderer
	edits    *edit.Session

	state  State
	tasks  chan func()
	done   chan struct{}
	callCx context.Context

	// store calls run one at a time in issue order, off the event loop
	callMu   sync.Mutex
	calls    []func()
	callWake chan struct{}

	viewID   string
	maxLen   int
	now      func() time.Time
	logger   zerolog.Logger
	audit    *telemetry.AuditEmitter
	onResult func(Result)
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used to date submitted messages.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithViewID tags logs and audit entries with id.
func WithViewID(id string) Option {
	return func(c *Controller) { c.viewID = id }
}

// WithMaxLength caps username and message length in runes.
func WithMaxLength(n int) Option {
	return func(c *Controller) { c.maxLen = n }
}

// WithAudit emits failed store calls to emitter.
func WithAudit(emitter *telemetry.AuditEmitter) Option {
	return func(c *Controller) { c.audit = emitter }
}

// WithResultObserver calls fn on the event loop for every store call result.
func WithResultObserver(fn func(Result)) Option {
	return func(c *Controller) { c.onResult = fn }
}

// New creates a Controller rendering through renderer.
func New(st store.MessageStore, renderer *render.Renderer, opts ...Option) *Controller {
	c := &Controller{
		store:    st,
		renderer: renderer,
		edits:    edit.NewSession(renderer),
		state:    StateLoading,
		tasks:    make(chan func(), 256),
		done:     make(chan struct{}),
		callWake: make(chan struct{}, 1),
		callCx:   context.Background(),
		maxLen:   500,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.L().With().Str("view_id", c.viewID).Logger()
	return c
}

// Run loads the ordered message list, subscribes to its changes and serves
// the event loop until ctx is done. It returns an error only when the
// initial query or the subscription fails.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// writes a client issued finish even when the client goes away
	c.callCx = context.WithoutCancel(ctx)

	if err := c.load(ctx); err != nil {
		return err
	}
	err := c.store.Subscribe(ctx, func(batch models.Batch) {
		c.post(func() { c.apply(batch) })
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("subscribe failed")
		return err
	}
	c.logger.Debug().Int("rendered", c.renderer.Len()).Msg("subscribed")

	go c.serveCalls()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-c.tasks:
			fn()
		}
	}
}

func (c *Controller) load(ctx context.Context) error {
	msgs, err := c.store.QueryOrdered(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("initial query failed")
		return err
	}
	if err := c.renderer.Reset(); err != nil {
		c.logger.Warn().Err(err).Msg("reset list")
	}
	for _, msg := range msgs {
		if err := c.renderer.Mount(msg); err != nil {
			c.logger.Warn().Err(err).Str("id", msg.ID).Msg("mount")
		}
	}
	return nil
}

// apply runs on the event loop. While loading, added events for ids the
// initial query already rendered are suppressed; the first batch always ends
// the loading state.
func (c *Controller) apply(batch models.Batch) {
	initial := c.state == StateLoading
	for _, ev := range batch {
		switch ev.Type {
		case models.ChangeAdded:
			if c.renderer.Has(ev.ID) {
				if !initial {
					c.logger.Debug().Str("id", ev.ID).Msg("duplicate added event")
				}
				observability.IncChangeEvent(string(ev.Type), "skipped")
				continue
			}
			msg := ev.Message
			msg.ID = ev.ID
			if err := c.renderer.Mount(msg); err != nil {
				c.logger.Warn().Err(err).Str("id", ev.ID).Msg("mount")
			}
		case models.ChangeModified:
			ok, err := c.renderer.SetText(ev.ID, ev.Message.Message)
			if err != nil {
				c.logger.Warn().Err(err).Str("id", ev.ID).Msg("set text")
			}
			if !ok {
				observability.IncChangeEvent(string(ev.Type), "skipped")
				continue
			}
		case models.ChangeRemoved:
			if err := c.edits.CloseIfActive(ev.ID); err != nil {
				c.logger.Warn().Err(err).Str("id", ev.ID).Msg("close popup")
			}
			ok, err := c.renderer.Unmount(ev.ID)
			if err != nil {
				c.logger.Warn().Err(err).Str("id", ev.ID).Msg("unmount")
			}
			if !ok {
				observability.IncChangeEvent(string(ev.Type), "skipped")
				continue
			}
		default:
			c.logger.Warn().Str("type", string(ev.Type)).Str("id", ev.ID).Msg("unknown change type")
			continue
		}
		observability.IncChangeEvent(string(ev.Type), "applied")
	}
	if initial {
		c.state = StateLive
		c.logger.Debug().Int("batch", len(batch)).Msg("initial batch applied, live")
	}
}

// Submit stores a new message. Nothing is rendered until the store reports it.
func (c *Controller) Submit(username, text string) {
	c.post(func() {
		msg, err := models.Compose(username, text, c.now(), c.maxLen)
		if err != nil {
			c.logger.Debug().Err(err).Msg("submit rejected")
			return
		}
		c.call("create", "", func(ctx context.Context) (string, error) {
			return c.store.Create(ctx, msg)
		})
	})
}

// Delete asks the store to delete id. The item disappears when the removal
// comes back through the subscription.
func (c *Controller) Delete(id string) {
	c.post(func() {
		c.call("delete", id, func(ctx context.Context) (string, error) {
			return id, c.store.Delete(ctx, id)
		})
	})
}

// Edit opens the edit popup for id.
func (c *Controller) Edit(id string) {
	c.post(func() {
		if err := c.edits.Open(id); err != nil {
			c.logger.Debug().Err(err).Str("id", id).Msg("edit")
		}
	})
}

// CloseEdit closes the edit popup without saving.
func (c *Controller) CloseEdit() {
	c.post(func() {
		if err := c.edits.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("close popup")
		}
	})
}

// SaveEdit shows text for the message being edited right away, then stores it.
func (c *Controller) SaveEdit(text string) {
	c.post(func() {
		text, err := models.NormalizeText(text, c.maxLen)
		if err != nil {
			c.logger.Debug().Err(err).Msg("save rejected")
			return
		}
		id, err := c.edits.Save(text)
		if id == "" {
			c.logger.Debug().Err(err).Msg("save")
			return
		}
		if err != nil {
			c.logger.Warn().Err(err).Str("id", id).Msg("save")
		}
		c.call("update", id, func(ctx context.Context) (string, error) {
			return id, c.store.Update(ctx, id, models.MessageUpdate{Message: text})
		})
	})
}

// Snapshot returns a copy of the current view, taken on the event loop.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	if !c.post(func() {
		id, open := c.edits.Active()
		ch <- Snapshot{State: c.state, Items: c.renderer.Items(), EditID: id, EditOpen: open}
	}) {
		return Snapshot{}, ErrStopped
	}
	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, ErrStopped
	}
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.tasks <- fn:
		return true
	case <-c.done:
		return false
	}
}

// call queues fn for the call worker, which reports its Result back onto the
// event loop. Calls finish in the order they were issued, so the store sees a
// view's writes in the order their dates were taken.
func (c *Controller) call(op, id string, fn func(ctx context.Context) (string, error)) {
	parent := c.callCx
	c.enqueue(func() {
		ctx, span := otel.Tracer("chat-widget/livesync").Start(parent, "store."+op)
		span.SetAttributes(attribute.String("view.id", c.viewID), attribute.String("message.id", id))
		start := time.Now()
		gotID, err := fn(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if gotID == "" {
			gotID = id
		}
		res := Result{Op: op, ID: gotID, Err: err, Duration: time.Since(start)}
		if !c.post(func() { c.observe(res) }) {
			c.observe(res)
		}
	})
}

func (c *Controller) enqueue(job func()) {
	c.callMu.Lock()
	c.calls = append(c.calls, job)
	c.callMu.Unlock()
	select {
	case c.callWake <- struct{}{}:
	default:
	}
}

func (c *Controller) takeCalls() []func() {
	c.callMu.Lock()
	defer c.callMu.Unlock()
	jobs := c.calls
	c.calls = nil
	return jobs
}

// serveCalls runs queued store calls until Run returns, then finishes the
// ones still queued.
func (c *Controller) serveCalls() {
	for {
		jobs := c.takeCalls()
		for _, job := range jobs {
			job()
		}
		if len(jobs) > 0 {
			continue
		}
		select {
		case <-c.callWake:
		case <-c.done:
			for _, job := range c.takeCalls() {
				job()
			}
			return
		}
	}
}

// observe does not touch view state, so it may also run after the loop ended.
func (c *Controller) observe(res Result) {
	observability.ObserveStoreCall(res.Op, res.Err, res.Duration)
	if res.Err != nil {
		c.logger.Error().Err(res.Err).Str("op", res.Op).Str("id", res.ID).Msg("store call failed")
		c.audit.StoreFailure(c.callCx, c.viewID, res.Op, res.ID, res.Err)
	} else {
		c.logger.Debug().Str("op", res.Op).Str("id", res.ID).Dur("took", res.Duration).Msg("store call")
	}
	if c.onResult != nil {
		c.onResult(res)
	}
}
