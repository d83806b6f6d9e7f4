package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   5 * time.Millisecond,
		MaxDelay:       50 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

func TestDo_Success(t *testing.T) {
	attempts := 0
	fn := func() error {
		attempts++
		return nil
	}

	err := Do(context.Background(), testPolicy(), fn)

	if err != nil {
		t.Errorf("Do() error = %v, want nil", err)
	}

	if attempts != 1 {
		t.Errorf("Do() attempts = %d, want 1", attempts)
	}
}

func TestDo_SucceedsWithinBudget(t *testing.T) {
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient failure")
		}
		return nil
	}

	err := Do(context.Background(), testPolicy(), fn)

	if err != nil {
		t.Errorf("Do() error = %v, want nil", err)
	}

	if attempts != 3 {
		t.Errorf("Do() attempts = %d, want 3", attempts)
	}
}

func TestDo_Exhausted(t *testing.T) {
	attempts := 0
	lastErr := errors.New("persistent failure")
	fn := func() error {
		attempts++
		return lastErr
	}

	p := testPolicy()
	err := Do(context.Background(), p, fn)

	if err == nil {
		t.Fatal("Do() error = nil, want non-nil")
	}

	if attempts != p.MaxAttempts {
		t.Errorf("Do() attempts = %d, want %d", attempts, p.MaxAttempts)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Do() error = %v, want *ExhaustedError", err)
	}

	if exhausted.Attempts != p.MaxAttempts {
		t.Errorf("ExhaustedError.Attempts = %d, want %d", exhausted.Attempts, p.MaxAttempts)
	}

	if !errors.Is(err, lastErr) {
		t.Errorf("Do() error should wrap the last attempt error, got %v", err)
	}
}

func TestDo_SingleAttempt(t *testing.T) {
	attempts := 0
	fn := func() error {
		attempts++
		return errors.New("failure")
	}

	p := testPolicy()
	p.MaxAttempts = 1
	err := Do(context.Background(), p, fn)

	if err == nil {
		t.Error("Do() error = nil, want non-nil")
	}

	if attempts != 1 {
		t.Errorf("Do() attempts = %d, want 1", attempts)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	p := Policy{
		MaxAttempts:    5,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0,
	}

	attempts := 0
	fn := func() error {
		attempts++
		return errors.New("failure")
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Cancel during the first backoff sleep
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, p, fn)

	if err != context.Canceled {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}

	if attempts != 1 {
		t.Errorf("Do() attempts = %d, want 1", attempts)
	}
}

func TestDoWithNotify_ReportsFailedAttempts(t *testing.T) {
	p := testPolicy()

	attempts := 0
	fn := func() error {
		attempts++
		return errors.New("failure")
	}

	var notified []int
	notify := func(attempt int, err error, sleep time.Duration) {
		if err == nil {
			t.Error("notify called with nil error")
		}
		if sleep < 0 {
			t.Errorf("notify called with negative sleep %v", sleep)
		}
		notified = append(notified, attempt)
	}

	_ = DoWithNotify(context.Background(), p, fn, notify)

	// The terminal attempt is not followed by a sleep, so it is not notified.
	if len(notified) != p.MaxAttempts-1 {
		t.Fatalf("notify calls = %d, want %d", len(notified), p.MaxAttempts-1)
	}

	for i, attempt := range notified {
		if attempt != i+1 {
			t.Errorf("notified[%d] = %d, want %d", i, attempt, i+1)
		}
	}
}

func TestPolicy_Schedule(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		expected []time.Duration
	}{
		{
			name: "doubles until cap",
			policy: Policy{
				MaxAttempts:  4,
				InitialDelay: 1 * time.Second,
				MaxDelay:     3 * time.Second,
				Multiplier:   2.0,
			},
			expected: []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second},
		},
		{
			name: "defaults",
			policy: Policy{
				MaxAttempts:  3,
				InitialDelay: 1 * time.Second,
				MaxDelay:     10 * time.Second,
				Multiplier:   2.0,
			},
			expected: []time.Duration{1 * time.Second, 2 * time.Second},
		},
		{
			name: "single attempt sleeps never",
			policy: Policy{
				MaxAttempts:  1,
				InitialDelay: 1 * time.Second,
				MaxDelay:     10 * time.Second,
				Multiplier:   2.0,
			},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.Schedule()
			if len(got) != len(tt.expected) {
				t.Fatalf("Schedule() = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Schedule()[%d] = %v, want %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Policy)
		wantErr bool
	}{
		{
			name:    "default policy",
			mutate:  func(p *Policy) {},
			wantErr: false,
		},
		{
			name:    "zero attempts",
			mutate:  func(p *Policy) { p.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "negative initial delay",
			mutate:  func(p *Policy) { p.InitialDelay = -1 * time.Second },
			wantErr: true,
		},
		{
			name:    "max delay below initial",
			mutate:  func(p *Policy) { p.MaxDelay = 500 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "multiplier below one",
			mutate:  func(p *Policy) { p.Multiplier = 0.5 },
			wantErr: true,
		},
		{
			name:    "jitter above one",
			mutate:  func(p *Policy) { p.JitterFraction = 1.5 },
			wantErr: true,
		},
		{
			name:    "no jitter",
			mutate:  func(p *Policy) { p.JitterFraction = 0 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJitter_Bounds(t *testing.T) {
	d := 100 * time.Millisecond
	fraction := 0.5
	max := time.Duration(fraction * float64(d))

	for i := 0; i < 100; i++ {
		j := jitter(d, fraction)
		if j < 0 || j > max {
			t.Fatalf("jitter(%v, %v) = %v, want within [0, %v]", d, fraction, j, max)
		}
	}

	if jitter(d, 0) != 0 {
		t.Error("jitter with zero fraction should be 0")
	}

	if jitter(0, fraction) != 0 {
		t.Error("jitter with zero delay should be 0")
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.MaxAttempts != 3 {
		t.Errorf("DefaultPolicy().MaxAttempts = %d, want 3", p.MaxAttempts)
	}

	if p.InitialDelay != 1*time.Second {
		t.Errorf("DefaultPolicy().InitialDelay = %v, want 1s", p.InitialDelay)
	}

	if p.MaxDelay != 10*time.Second {
		t.Errorf("DefaultPolicy().MaxDelay = %v, want 10s", p.MaxDelay)
	}

	if p.Multiplier != 2.0 {
		t.Errorf("DefaultPolicy().Multiplier = %f, want 2.0", p.Multiplier)
	}

	if p.JitterFraction != 0.1 {
		t.Errorf("DefaultPolicy().JitterFraction = %f, want 0.1", p.JitterFraction)
	}

	if err := p.Validate(); err != nil {
		t.Errorf("DefaultPolicy().Validate() error = %v, want nil", err)
	}
}

func TestExhaustedError_Message(t *testing.T) {
	err := &ExhaustedError{Attempts: 3, Err: errors.New("connection refused")}

	want := "exhausted 3 attempts: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	if err.Unwrap() == nil {
		t.Error("Unwrap() = nil, want underlying error")
	}
}
