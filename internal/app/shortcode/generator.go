package shortcode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sifan077/LinkPulse/internal/app/metrics"
	"github.com/sifan077/LinkPulse/internal/app/repository"
	"go.uber.org/zap"
)

// ErrExhausted is returned when MaxAttempts draws all collided.
var ErrExhausted = errors.New("shortcode: attempts exhausted")

// Lookup is the advisory existence check the generator runs before inserting.
type Lookup interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// InsertFunc performs the authoritative, uniqueness-constrained insert of code.
// It must return repository.ErrCodeConflict when the code is already taken.
type InsertFunc func(ctx context.Context, code string) error

// Config tunes the collision-avoidance protocol.
type Config struct {
	Length      int
	MaxLength   int
	MaxRetries  int
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		Length:      8,
		MaxLength:   12,
		MaxRetries:  10,
		MaxAttempts: 64,
		BaseDelay:   10 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Length <= 0 {
		c.Length = def.Length
	}
	if c.MaxLength <= 0 {
		c.MaxLength = def.MaxLength
	}
	if c.Length < MinLength {
		c.Length = MinLength
	}
	if c.MaxLength > MaxLength {
		c.MaxLength = MaxLength
	}
	if c.Length > c.MaxLength {
		c.MaxLength = c.Length
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	return c
}

// Deps groups the generator's collaborators.
type Deps struct {
	Lookup  Lookup
	Config  Config
	Logger  *zap.Logger
	Metrics metrics.Recorder
	// Filter, when set, remembers every code this process has inserted or loaded.
	// A definite miss skips the store round trip; a maybe-hit falls through to Lookup.
	Filter *bloom.BloomFilter
}

// Generator allocates codes with check-then-insert and exponential backoff.
// The pre-insert lookup only lowers the collision rate; the store's unique
// constraint decides, and a conflict on insert is retried like any other collision.
type Generator struct {
	lookup  Lookup
	cfg     Config
	logger  *zap.Logger
	metrics metrics.Recorder

	filterMu sync.RWMutex
	filter   *bloom.BloomFilter

	random func(alphabet string, length int) (string, error)
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewGenerator returns a generator backed by deps.Lookup.
func NewGenerator(deps Deps) *Generator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Generator{
		lookup:  deps.Lookup,
		cfg:     deps.Config.withDefaults(),
		logger:  logger.Named("shortcode"),
		metrics: recorder,
		filter:  deps.Filter,
		random:  Random,
		sleep:   sleepContext,
	}
}

// NewFilter sizes a bloom filter for capacity codes. A zero capacity disables filtering.
func NewFilter(capacity uint, fpRate float64) *bloom.BloomFilter {
	if capacity == 0 {
		return nil
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	return bloom.NewWithEstimates(capacity, fpRate)
}

// Remember records codes known to exist, e.g. when warming the filter at startup.
func (g *Generator) Remember(codes ...string) {
	if g.filter == nil {
		return
	}
	g.filterMu.Lock()
	defer g.filterMu.Unlock()
	for _, code := range codes {
		g.filter.AddString(code)
	}
}

// Generate returns a code that was free at lookup time. Without an insert the
// result can still be lost to a concurrent writer; prefer Allocate.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	return g.Allocate(ctx, nil)
}

type attemptState struct {
	length  int
	retries int
}

// Allocate draws codes until insert accepts one. After MaxRetries collisions at one
// length the length grows by one, up to MaxLength. A store error during the lookup
// switches that attempt to the unconstrained fallback alphabet.
func (g *Generator) Allocate(ctx context.Context, insert InsertFunc) (string, error) {
	st := attemptState{length: g.cfg.Length}

	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if st.retries >= g.cfg.MaxRetries {
			st.retries = 0
			if st.length < g.cfg.MaxLength {
				st.length++
				g.metrics.IncCodeEscalation(st.length)
				g.logger.Info("escalating short code length", zap.Int("length", st.length))
			}
		}

		code, free, err := g.candidate(ctx, st.length)
		if err != nil {
			return "", err
		}

		if free && insert != nil {
			err := insert(ctx, code)
			switch {
			case err == nil:
			case errors.Is(err, repository.ErrCodeConflict):
				g.metrics.IncCodeCollision("insert")
				g.Remember(code)
				free = false
			default:
				return "", err
			}
		}

		if free {
			if insert != nil {
				g.Remember(code)
			}
			return code, nil
		}

		st.retries++
		if err := g.sleep(ctx, g.backoff(st.retries)); err != nil {
			return "", err
		}
	}

	return "", ErrExhausted
}

// candidate draws one code and reports whether it looked free.
func (g *Generator) candidate(ctx context.Context, length int) (string, bool, error) {
	code, err := g.random(Alphabet, length)
	if err != nil {
		return "", false, fmt.Errorf("shortcode: draw: %w", err)
	}

	if g.definitelyUnknown(code) {
		return code, true, nil
	}

	exists, err := g.lookup.CodeExists(ctx, code)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		g.logger.Warn("code lookup failed, issuing unconstrained code", zap.Error(err))
		g.metrics.IncCodeFallback()
		fallback, ferr := g.random(fallbackAlphabet, length)
		if ferr != nil {
			return "", false, fmt.Errorf("shortcode: draw fallback: %w", ferr)
		}
		return fallback, true, nil
	}

	if exists {
		g.metrics.IncCodeCollision("precheck")
		g.logger.Debug("short code collision", zap.String("code", code), zap.Int("length", length))
		return code, false, nil
	}
	return code, true, nil
}

func (g *Generator) definitelyUnknown(code string) bool {
	if g.filter == nil {
		return false
	}
	g.filterMu.RLock()
	defer g.filterMu.RUnlock()
	return !g.filter.TestString(code)
}

// backoff is 2^retries * BaseDelay.
func (g *Generator) backoff(retries int) time.Duration {
	if retries > 20 {
		retries = 20
	}
	return g.cfg.BaseDelay * time.Duration(1<<uint(retries))
}

// sleepContext waits for d unless ctx ends first. Nothing is written while waiting,
// so abandoning the wait has no side effect.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
