package flow

// Shared test fakes for the flow package: a deterministic timer, a recording
// poll sink and a scriptable backend API.

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/UniversalShopper/ShopperChat/internal/models"
)

type fakeTimerEntry struct {
	id string
	fn func()
}

// fakeTimer collects scheduled callbacks and fires them only when the test
// says so.
type fakeTimer struct {
	mu        sync.Mutex
	nextID    int
	pending   []fakeTimerEntry
	cancelled map[string]bool
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{cancelled: make(map[string]bool)}
}

func (t *fakeTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("fake_%d", t.nextID)
	t.pending = append(t.pending, fakeTimerEntry{id: id, fn: fn})
	return id, nil
}

func (t *fakeTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled[id] = true
	for i, e := range t.pending {
		if e.id == id {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (t *fakeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = nil
}

// fire runs the oldest pending callback synchronously.
func (t *fakeTimer) fire(tb testing.TB) {
	tb.Helper()
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		tb.Fatal("no pending timer to fire")
	}
	entry := t.pending[0]
	t.pending = t.pending[1:]
	t.mu.Unlock()
	entry.fn()
}

func (t *fakeTimer) pendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// fakeSink records poll outcomes.
type fakeSink struct {
	mu       sync.Mutex
	results  []sinkResult
	timeouts []uint64
}

type sinkResult struct {
	gen       uint64
	processID string
	proc      *models.Process
	err       error
}

func (s *fakeSink) PollResult(ctx context.Context, gen uint64, processID string, proc *models.Process, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, sinkResult{gen: gen, processID: processID, proc: proc, err: err})
}

func (s *fakeSink) PollTimeout(ctx context.Context, gen uint64, processID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts = append(s.timeouts, gen)
}

func (s *fakeSink) resultCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func (s *fakeSink) timeoutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timeouts)
}

// fakeAPI is a scriptable ProcessAPI that records every submission.
type fakeAPI struct {
	mu sync.Mutex

	sessions    []string
	sessionsErr error
	startResult *models.Process
	startErr    error
	getResult   *models.Process
	getErr      error
	listResult  []models.Process
	listErr     error
	submitErr   error

	startCalls   []startCall
	phoneCalls   []string
	loginOTPs    []string
	bankOTPs     []string
	selectCalls  []int
	paymentCalls [][]string
}

type startCall struct {
	productURL  string
	sessionName string
	useExisting bool
}

func (f *fakeAPI) ListSessions(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions, f.sessionsErr
}

func (f *fakeAPI) StartProcess(ctx context.Context, productURL, sessionName string, useExisting bool) (*models.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls = append(f.startCalls, startCall{productURL: productURL, sessionName: sessionName, useExisting: useExisting})
	if f.startErr != nil {
		return nil, f.startErr
	}
	cp := *f.startResult
	return &cp, nil
}

func (f *fakeAPI) GetProcess(ctx context.Context, processID string) (*models.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	cp := *f.getResult
	return &cp, nil
}

func (f *fakeAPI) ListProcesses(ctx context.Context) ([]models.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listResult, f.listErr
}

func (f *fakeAPI) SubmitLoginOTP(ctx context.Context, processID, otp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginOTPs = append(f.loginOTPs, otp)
	return f.submitErr
}

func (f *fakeAPI) SubmitBankOTP(ctx context.Context, processID, otp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bankOTPs = append(f.bankOTPs, otp)
	return f.submitErr
}

func (f *fakeAPI) SubmitPhoneNumber(ctx context.Context, processID, phoneNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phoneCalls = append(f.phoneCalls, phoneNumber)
	return f.submitErr
}

func (f *fakeAPI) SelectAddress(ctx context.Context, processID string, addressIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selectCalls = append(f.selectCalls, addressIndex)
	return f.submitErr
}

func (f *fakeAPI) SubmitPayment(ctx context.Context, processID, cardNumber, cvv, expiryMonth, expiryYear, expiryCombined string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentCalls = append(f.paymentCalls, []string{cardNumber, cvv, expiryMonth, expiryYear, expiryCombined})
	return f.submitErr
}

// setGetResult swaps the process returned by the next poll.
func (f *fakeAPI) setGetResult(p *models.Process) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getResult = p
	f.getErr = nil
}

func (f *fakeAPI) setGetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}
