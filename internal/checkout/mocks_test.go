package checkout

import (
	"context"
	"sync"

	"github.com/fjod/slime-shop/internal/domain"
	"github.com/fjod/slime-shop/internal/notify"
)

// callLog records side effects in the order they happened.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

func (l *callLog) count(name string) int {
	n := 0
	for _, c := range l.all() {
		if c == name {
			n++
		}
	}
	return n
}

// MockMailer fails the templates listed in Fail and records everything else.
type MockMailer struct {
	log    *callLog
	Fail   map[notify.Template]error
	Block  chan struct{} // when set, Send waits for it or for ctx
	mu     sync.Mutex
	Params map[notify.Template]notify.Params
}

func (m *MockMailer) Send(ctx context.Context, template notify.Template, params notify.Params) error {
	m.log.add(string(template))
	m.mu.Lock()
	if m.Params == nil {
		m.Params = make(map[notify.Template]notify.Params)
	}
	m.Params[template] = params
	m.mu.Unlock()

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.Fail[template]
}

// MockSink captures saved orders. OnSave runs before the result is returned.
type MockSink struct {
	log    *callLog
	Err    error
	OnSave func()
	Saved  []domain.OrderRecord
}

func (m *MockSink) SaveOrder(_ context.Context, order domain.OrderRecord) error {
	m.log.add(StepPersistOrder)
	if m.OnSave != nil {
		m.OnSave()
	}
	if m.Err != nil {
		return m.Err
	}
	m.Saved = append(m.Saved, order)
	return nil
}

// recordingRecorder keeps the telemetry calls.
type recordingRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
	steps    []string
}

func (r *recordingRecorder) CheckoutOutcome(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingRecorder) StepResult(step string, policy StepPolicy, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := "ok"
	if err != nil {
		res = "error"
	}
	r.steps = append(r.steps, step+"/"+policy.String()+"/"+res)
}
