package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/fjod/slime-shop/internal/domain"
	"github.com/fjod/slime-shop/internal/logger"
	"github.com/fjod/slime-shop/internal/notify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/fjod/slime-shop/internal/checkout")

// Cart is what checkout needs from a cart store. Key identifies the session's
// cart across store instances.
type Cart interface {
	Key() string
	Lines() []domain.CartLine
	ClearCart(ctx context.Context)
}

// pinner is implemented by carts that can be held in memory for the length of an attempt.
type pinner interface {
	Pin()
	Unpin()
}

// OrderSink persists a finished order.
type OrderSink interface {
	SaveOrder(ctx context.Context, order domain.OrderRecord) error
}

// Recorder receives checkout telemetry.
type Recorder interface {
	CheckoutOutcome(outcome Outcome)
	StepResult(step string, policy StepPolicy, err error)
}

type nopRecorder struct{}

func (nopRecorder) CheckoutOutcome(Outcome) {}

func (nopRecorder) StepResult(string, StepPolicy, error) {}

// Phase is where a checkout attempt currently is.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseSubmitting Phase = "submitting"
	PhaseSuccess    Phase = "success"
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeEmptyCart Outcome = "empty_cart"
	OutcomeFailed    Outcome = "failed"
	OutcomeBusy      Outcome = "busy"
)

// StepPolicy decides what a failing side effect does to the attempt.
type StepPolicy int

const (
	// Required steps abort the attempt and keep the cart for a retry.
	Required StepPolicy = iota
	// BestEffort steps are logged on failure and the attempt carries on.
	BestEffort
)

func (p StepPolicy) String() string {
	if p == BestEffort {
		return "best_effort"
	}
	return "required"
}

const (
	StepNotifyBusiness = "notify_business"
	StepNotifyCustomer = "notify_customer"
	StepPersistOrder   = "persist_order"
)

// Result is the terminal, user-visible state of one attempt.
type Result struct {
	Outcome        Outcome             `json:"outcome"`
	FieldErrors    ValidationErrors    `json:"field_errors,omitempty"`
	FirstError     string              `json:"first_error,omitempty"`
	Redirect       string              `json:"redirect,omitempty"`
	Alert          string              `json:"alert,omitempty"`
	Confirmation   string              `json:"confirmation,omitempty"`
	Order          *domain.OrderRecord `json:"order,omitempty"`
	FormattedTotal string              `json:"total,omitempty"`
	Err            error               `json:"-"`
}

type Settings struct {
	BusinessEmail string
	StoreName     string
	// StepTimeout bounds each side-effect call. Zero means no bound.
	StepTimeout time.Duration
}

type Orchestrator struct {
	mailer   notify.Mailer
	sink     OrderSink
	settings Settings
	log      *slog.Logger
	recorder Recorder
	now      func() time.Time
	onPhase  func(Phase)

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu       sync.Mutex
	inFlight map[string]struct{}
}

type Option func(*Orchestrator)

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithRand(rnd *rand.Rand) Option {
	return func(o *Orchestrator) { o.rnd = rnd }
}

// WithPhaseHook observes every phase transition of every attempt.
func WithPhaseHook(fn func(Phase)) Option {
	return func(o *Orchestrator) { o.onPhase = fn }
}

func NewOrchestrator(mailer notify.Mailer, sink OrderSink, settings Settings, log *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		mailer:   mailer,
		sink:     sink,
		settings: settings,
		log:      log,
		recorder: nopRecorder{},
		now:      time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Guard tells the checkout view whether to stay. An empty cart sends the customer back to the catalog.
func (o *Orchestrator) Guard(c Cart) (redirect string, ok bool) {
	if len(c.Lines()) == 0 {
		return CatalogPath, false
	}
	return "", true
}

// Submit runs one checkout attempt: validate, total, notify business, notify
// customer, persist order, clear cart. See Required and BestEffort for how a
// failing step is handled.
// Once the side effects start they no longer follow ctx cancellation; each one
// is bounded by the step timeout, and so is the final clear.
func (o *Orchestrator) Submit(ctx context.Context, c Cart, form Form) Result {
	if !o.acquire(c) {
		return o.finish(Result{Outcome: OutcomeBusy, Err: ErrSubmissionInFlight})
	}
	defer o.release(c)

	log := logger.FromContext(ctx, o.log)

	o.enter(PhaseValidating)
	form = form.Normalize()
	if errs := Validate(form); len(errs) > 0 {
		o.enter(PhaseIdle)
		return o.finish(Result{
			Outcome:     OutcomeInvalid,
			FieldErrors: errs,
			FirstError:  errs.First(),
			Err:         fmt.Errorf("%w: %s", ErrValidation, errs.Error()),
		})
	}

	o.enter(PhaseSubmitting)
	lines := c.Lines()
	if len(lines) == 0 {
		o.enter(PhaseIdle)
		return o.finish(Result{Outcome: OutcomeEmptyCart, Redirect: CatalogPath, Err: ErrEmptyCart})
	}

	// a disconnect must not stop the attempt between an email and the clear
	ctx = context.WithoutCancel(ctx)

	total := domain.Total(lines)
	order := o.buildOrder(form, lines, total)
	businessParams, customerParams := o.notificationParams(form, order, lines)

	steps := []step{
		{StepNotifyBusiness, Required, func(ctx context.Context) error {
			return o.mailer.Send(ctx, notify.BusinessNotification, businessParams)
		}},
		{StepNotifyCustomer, Required, func(ctx context.Context) error {
			return o.mailer.Send(ctx, notify.CustomerConfirmation, customerParams)
		}},
		{StepPersistOrder, BestEffort, func(ctx context.Context) error {
			return o.sink.SaveOrder(ctx, order)
		}},
	}

	for _, st := range steps {
		err := o.runStep(ctx, st)
		o.recorder.StepResult(st.name, st.policy, err)
		if err == nil {
			continue
		}
		if st.policy == BestEffort {
			log.Warn("checkout step failed, continuing", "step", st.name, "order_id", order.OrderID, "error", err)
			continue
		}
		log.Error("checkout step failed", "step", st.name, "order_id", order.OrderID, "error", err)
		o.enter(PhaseIdle)
		return o.finish(Result{
			Outcome: OutcomeFailed,
			Alert:   FailureAlert,
			Err:     fmt.Errorf("%s: %w", st.name, err),
		})
	}

	o.enter(PhaseSuccess)
	o.clear(ctx, c)
	log.Info("order submitted", "order_id", order.OrderID, "total", FormatPrice(total), "items", len(order.Items))
	o.enter(PhaseIdle)

	return o.finish(Result{
		Outcome:        OutcomeSuccess,
		Confirmation:   ConfirmationMessage,
		Order:          &order,
		FormattedTotal: FormatPrice(total),
	})
}

type step struct {
	name   string
	policy StepPolicy
	run    func(ctx context.Context) error
}

func (o *Orchestrator) runStep(ctx context.Context, st step) error {
	ctx, span := tracer.Start(ctx, "checkout."+st.name)
	defer span.End()
	span.SetAttributes(attribute.String("checkout.step_policy", st.policy.String()))

	if o.settings.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.settings.StepTimeout)
		defer cancel()
	}

	err := st.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) clear(ctx context.Context, c Cart) {
	if o.settings.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.settings.StepTimeout)
		defer cancel()
	}
	c.ClearCart(ctx)
}

func (o *Orchestrator) buildOrder(form Form, lines []domain.CartLine, total float64) domain.OrderRecord {
	now := o.now()
	o.rndMu.Lock()
	id := domain.NewOrderID(now, o.rnd)
	o.rndMu.Unlock()

	return domain.OrderRecord{
		OrderID:         id,
		Name:            form.Name,
		Email:           form.Email,
		Phone:           form.Phone,
		Items:           domain.SnapshotItems(lines),
		Subtotal:        total,
		Total:           total,
		Status:          domain.OrderStatusPending,
		ShippingAddress: form.ShippingAddress(),
		PaymentMethod:   domain.PaymentMethod,
		Notes:           form.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (o *Orchestrator) notificationParams(form Form, order domain.OrderRecord, lines []domain.CartLine) (business, customer notify.Params) {
	items := ItemsSummary(lines)
	total := FormatPrice(order.Total)
	notes := form.Notes
	if notes == "" {
		notes = "None"
	}

	business = notify.Params{
		"to_email":   o.settings.BusinessEmail,
		"from_name":  form.Name,
		"from_email": form.Email,
		"reply_to":   form.Email,
		"phone":      form.Phone,
		"order_id":   order.OrderID,
		"address":    order.ShippingAddress,
		"items":      items,
		"total":      total,
		"notes":      notes,
	}
	customer = notify.Params{
		"to_email":   form.Email,
		"to_name":    form.Name,
		"from_name":  o.settings.StoreName,
		"reply_to":   o.settings.BusinessEmail,
		"order_id":   order.OrderID,
		"address":    order.ShippingAddress,
		"items":      items,
		"total":      total,
		"notes":      notes,
		"payment":    order.PaymentMethod,
		"store_name": o.settings.StoreName,
	}
	return business, customer
}

func (o *Orchestrator) acquire(c Cart) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[c.Key()]; busy {
		return false
	}
	o.inFlight[c.Key()] = struct{}{}
	if p, ok := c.(pinner); ok {
		p.Pin()
	}
	return true
}

func (o *Orchestrator) release(c Cart) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, c.Key())
	if p, ok := c.(pinner); ok {
		p.Unpin()
	}
}

func (o *Orchestrator) enter(p Phase) {
	if o.onPhase != nil {
		o.onPhase(p)
	}
}

func (o *Orchestrator) finish(r Result) Result {
	o.recorder.CheckoutOutcome(r.Outcome)
	return r
}
