package costgovernor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
	"smartLink/pkg/logger"
	"smartLink/pkg/metrics"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

const (
	reasonThrottled   = "region throttled until %s"
	reasonDailyLimit  = "daily request limit reached"
	reasonBudgetLimit = "monthly budget nearly exhausted"
)

type Governor struct {
	ledgers LedgerRepository
	usage   UsageRepository
	records RecordRepository
	costs   CostTable
	cfg     Config
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(ledgers LedgerRepository, usage UsageRepository, records RecordRepository, costs CostTable, cfg Config) *Governor {
	if cfg.StaleAfter == nil {
		cfg = DefaultConfig()
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	return &Governor{
		ledgers: ledgers,
		usage:   usage,
		records: records,
		costs:   costs,
		cfg:     cfg,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (g *Governor) regionLock(region string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[region]
	if !ok {
		l = &sync.Mutex{}
		g.locks[region] = l
	}
	return l
}

// ledger loads the region's ledger after creating it with defaults and
// applying any pending day or month roll-over.
func (g *Governor) ledger(ctx context.Context, region string, now time.Time) (domain.BudgetLedger, error) {
	day, month := dayKey(now), monthKey(now)

	err := g.ledgers.EnsureLedger(ctx, domain.BudgetLedger{
		RegionID:         region,
		Day:              day,
		Month:            month,
		DailyCeiling:     g.cfg.DailyRequestLimit,
		BaseDailyCeiling: g.cfg.DailyRequestLimit,
		MonthlyBudget:    g.cfg.MonthlyBudget,
	})
	if err != nil {
		return domain.BudgetLedger{}, fmt.Errorf("failed to ensure budget ledger: %w", err)
	}

	if err := g.ledgers.RollOver(ctx, region, day, month); err != nil {
		return domain.BudgetLedger{}, fmt.Errorf("failed to roll over budget ledger: %w", err)
	}

	return g.ledgers.GetLedger(ctx, region)
}

func (g *Governor) check(ledger domain.BudgetLedger, now time.Time) Decision {
	if ledger.Throttled && ledger.ThrottleUntil != nil && now.Before(*ledger.ThrottleUntil) {
		return Decision{Reason: fmt.Sprintf(reasonThrottled, ledger.ThrottleUntil.UTC().Format(time.RFC3339))}
	}
	if ledger.DailyCount >= ledger.DailyCeiling {
		return Decision{Reason: reasonDailyLimit}
	}
	if ledger.BudgetUsage() >= g.cfg.BudgetCutoff {
		return Decision{Reason: reasonBudgetLimit}
	}
	return Decision{Allowed: true}
}

// CanProceed reports whether a lookup in region would be admitted right now
// without consuming budget.
func (g *Governor) CanProceed(ctx context.Context, region string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, fmt.Errorf("context error: %w", err)
	}

	region = normalizeRegion(region)
	now := g.now()

	ledger, err := g.ledger(ctx, region, now)
	if err != nil {
		logger.Error("failed to load budget ledger", "region", region, "error", err)
		return Decision{}, err
	}
	return g.check(ledger, now), nil
}

// Acquire admits one marketplace lookup and charges it to the region. The
// admission check and the increment happen in one statement so concurrent
// callers can never push the daily count past its ceiling.
func (g *Governor) Acquire(ctx context.Context, region string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, fmt.Errorf("context error: %w", err)
	}

	region = normalizeRegion(region)
	lock := g.regionLock(region)
	lock.Lock()
	defer lock.Unlock()

	now := g.now()
	if _, err := g.ledger(ctx, region, now); err != nil {
		logger.Error("failed to load budget ledger", "region", region, "error", err)
		return Decision{}, err
	}

	ok, err := g.ledgers.TryAcquire(ctx, region, g.costs.CostPerRequest(region), g.cfg.BudgetCutoff, now)
	if err != nil {
		logger.Error("failed to acquire budget", "region", region, "error", err)
		return Decision{}, err
	}

	var decision Decision
	if ok {
		decision = Decision{Allowed: true}
	} else {
		ledger, err := g.ledgers.GetLedger(ctx, region)
		if err != nil {
			return Decision{}, err
		}
		decision = g.check(ledger, now)
		if decision.Allowed {
			// lost a race against another process between check and update
			decision = Decision{Reason: reasonDailyLimit}
		}
	}
	metrics.BudgetDecisions.WithLabelValues(region, strconv.FormatBool(decision.Allowed)).Inc()

	if decision.Allowed {
		if err := g.applyThrottling(ctx, region, now); err != nil {
			logger.Warn("failed to apply throttling", "region", region, "error", err)
		}
	}

	return decision, nil
}

// Admit charges one gateway request to region. A refusal comes back as
// apperrors.ErrBudgetExceeded carrying the decision reason.
func (g *Governor) Admit(ctx context.Context, region string) error {
	decision, err := g.Acquire(ctx, region)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return fmt.Errorf("%w: %s", apperrors.ErrBudgetExceeded, decision.Reason)
	}
	return nil
}

// ApplyThrottling shrinks the daily ceiling and pauses the region until the
// next month once budget usage passes the pressure threshold.
func (g *Governor) ApplyThrottling(ctx context.Context, region string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	region = normalizeRegion(region)
	lock := g.regionLock(region)
	lock.Lock()
	defer lock.Unlock()

	return g.applyThrottling(ctx, region, g.now())
}

func (g *Governor) applyThrottling(ctx context.Context, region string, now time.Time) error {
	ledger, err := g.ledgers.GetLedger(ctx, region)
	if err != nil {
		return err
	}
	if ledger.Throttled || ledger.BudgetUsage() <= g.cfg.PressureThreshold {
		return nil
	}

	ceiling := int(math.Floor(float64(ledger.BaseDailyCeiling) * g.cfg.ThrottleFactor))
	until := nextMonth(now)
	if err := g.ledgers.Throttle(ctx, region, ceiling, until); err != nil {
		return err
	}

	logger.Warn("region throttled", "region", region, "daily_ceiling", ceiling, "until", until)
	return nil
}

// ReleaseThrottle lifts the pause but keeps the reduced daily ceiling until
// the month rolls over.
func (g *Governor) ReleaseThrottle(ctx context.Context, region string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	region = normalizeRegion(region)
	if _, err := g.ledgers.GetLedger(ctx, region); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: no budget ledger for %s", apperrors.ErrNotFound, region)
		}
		return err
	}

	if err := g.ledgers.ReleaseThrottle(ctx, region); err != nil {
		logger.Error("failed to release throttle", "region", region, "error", err)
		return err
	}
	logger.Info("region throttle released", "region", region)
	return nil
}

func normalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// nextMonth is the first instant of the month after t, in UTC.
func nextMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(t time.Time) int {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
