// Package retry implements bounded exponential backoff with jitter for
// transient failures: tool calls, remote model calls and git operations all
// share one policy shape. The policy performs no logging; every attempt is
// recorded in a history returned to the caller for audit purposes.
package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/davidmying/wingman/types"
)

// Config configures a retry policy instance. Zero values are normalized by
// NewPolicy; MaxRetries is clamped to [0, 10].
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64

	// RetryableKinds is the allow-list of error classifications that are
	// always retried.
	RetryableKinds []types.ErrorKind
	// RetryablePatterns are case-insensitive substrings matched against the
	// error message. Defaults cover common transient conditions.
	RetryablePatterns []string

	// TemperatureStep is added to the operation's temperature on each retry,
	// capped at MaxTemperature. Zero disables the ramp.
	TemperatureStep float64
	MaxTemperature  float64
	// BaseTemperature is the temperature passed to the first attempt.
	BaseTemperature float64
}

// defaultPatterns match the transient conditions seen from rate-limited or
// flaky upstreams.
var defaultPatterns = []string{
	"rate limit",
	"429",
	"too many requests",
	"quota exceeded",
	"timeout",
	"connection",
	"temporary",
	"500",
	"502",
	"503",
	"504",
}

// Attempt describes one try of the operation, passed to the operation itself
// and recorded in the result history.
type Attempt struct {
	Number      int             `json:"number"`
	Temperature float64         `json:"temperature"`
	Delay       time.Duration   `json:"delayBefore"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   types.ErrorKind `json:"errorKind,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Result is the terminal outcome of Execute.
type Result struct {
	Success       bool
	Value         string
	Err           error
	Cancelled     bool
	TotalAttempts int
	TotalTime     time.Duration
	History       []Attempt
}

// Operation is a retryable unit of work. The attempt argument carries the
// attempt number and the adjusted temperature for this try.
type Operation func(ctx context.Context, attempt Attempt) (string, error)

// Policy computes retry eligibility and backoff delays.
type Policy struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

// NewPolicy builds a policy from cfg, applying defaults and sanity clamps.
func NewPolicy(cfg Config) *Policy {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetries > 10 {
		cfg.MaxRetries = 10
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.JitterFactor < 0 {
		cfg.JitterFactor = 0
	}
	if cfg.JitterFactor > 1 {
		cfg.JitterFactor = 1
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if len(cfg.RetryablePatterns) == 0 {
		cfg.RetryablePatterns = defaultPatterns
	}
	return &Policy{
		cfg:   cfg,
		sleep: sleepCtx,
		rand:  rand.Float64,
	}
}

// Delay returns the backoff delay before retry attempt n (1-indexed; the
// initial try is attempt 0 and has no delay). The base delay is capped at
// MaxDelay, then inflated by a uniform jitter term in [0, delay*jitter].
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.cfg.InitialDelay <= 0 {
		return 0
	}
	base := float64(p.cfg.InitialDelay) * math.Pow(p.cfg.Multiplier, float64(attempt-1))
	base = math.Min(base, float64(p.cfg.MaxDelay))
	if p.cfg.JitterFactor > 0 {
		base += base * p.cfg.JitterFactor * p.rand()
	}
	return time.Duration(base)
}

// Retryable reports whether err qualifies for another attempt: either its
// classified kind is allow-listed or its message matches a transient pattern.
func (p *Policy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	kind := types.KindOf(err)
	for _, k := range p.cfg.RetryableKinds {
		if kind == k {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, pat := range p.cfg.RetryablePatterns {
		if strings.Contains(msg, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}

// temperature computes the adjusted temperature for the given attempt number.
func (p *Policy) temperature(attempt int) float64 {
	t := p.cfg.BaseTemperature + float64(attempt)*p.cfg.TemperatureStep
	if p.cfg.MaxTemperature > 0 && t > p.cfg.MaxTemperature {
		t = p.cfg.MaxTemperature
	}
	return t
}

// Execute runs op, retrying transient failures with backoff until the retry
// budget is exhausted. The context is checked before every attempt including
// the first; cancellation returns immediately without consuming a retry.
func (p *Policy) Execute(ctx context.Context, op Operation) Result {
	start := time.Now()
	res := Result{}

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Cancelled = true
			res.Err = err
			res.TotalTime = time.Since(start)
			return res
		}

		delay := p.Delay(attempt)
		if delay > 0 {
			if err := p.sleep(ctx, delay); err != nil {
				res.Cancelled = true
				res.Err = err
				res.TotalTime = time.Since(start)
				return res
			}
		}

		a := Attempt{
			Number:      attempt,
			Temperature: p.temperature(attempt),
			Delay:       delay,
			Timestamp:   time.Now().UTC(),
		}

		value, err := op(ctx, a)
		res.TotalAttempts = attempt + 1
		if err != nil {
			a.Error = err.Error()
			a.ErrorKind = types.KindOf(err)
		}
		res.History = append(res.History, a)

		if err == nil {
			res.Success = true
			res.Value = value
			res.TotalTime = time.Since(start)
			return res
		}

		res.Err = err
		if !p.Retryable(err) {
			break
		}
	}

	res.TotalTime = time.Since(start)
	return res
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
