package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
	"smartLink/pkg/logger"
	"smartLink/pkg/metrics"
	"smartLink/pkg/workerpool"
)

type Report struct {
	Region      string    `json:"region"`
	Planned     int       `json:"planned"`
	Refreshed   int       `json:"refreshed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Deactivated int       `json:"deactivated"`
	StopReason  string    `json:"stop_reason,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

type chunkResult struct {
	refreshed   int
	failed      int
	skipped     int
	deactivated int
	reason      string
}

type Service struct {
	market     Marketplace
	governor   Governor
	records    RecordRepository
	clicks     ClickRepository
	currencies CurrencyTable
	pool       *workerpool.Pool
	cfg        Config
	now        func() time.Time
}

func NewService(
	market Marketplace,
	governor Governor,
	records RecordRepository,
	clicks ClickRepository,
	currencies CurrencyTable,
	cfg Config,
) *Service {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	return &Service{
		market:     market,
		governor:   governor,
		records:    records,
		clicks:     clicks,
		currencies: currencies,
		pool:       workerpool.New(workerpool.Config{MaxConcurrent: cfg.MaxConcurrent, BatchDelay: cfg.BatchDelay}),
		cfg:        cfg,
		now:        time.Now,
	}
}

// RunBatchRefresh refreshes the products the governor plans for region now.
// A budget refusal ends the run early; the remaining products are reported
// as skipped rather than as an error.
func (s *Service) RunBatchRefresh(ctx context.Context, region string) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("context error: %w", err)
	}

	region = strings.ToUpper(strings.TrimSpace(region))
	plan, err := s.governor.ScheduleBatch(ctx, region, s.now())
	if err != nil {
		logger.Error("failed to schedule refresh batch", "region", region, "error", err)
		return Report{}, err
	}

	report := s.run(ctx, region, plan.ProductIDs)
	logger.Info("batch refresh finished",
		"region", region,
		"peak", plan.Peak,
		"planned", report.Planned,
		"refreshed", report.Refreshed,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"deactivated", report.Deactivated,
	)
	return report, nil
}

// RefreshProducts refreshes the given products of region and returns how
// many were checked successfully.
func (s *Service) RefreshProducts(ctx context.Context, region string, productIDs []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}
	report := s.run(ctx, strings.ToUpper(region), dedupe(productIDs))
	return report.Refreshed, nil
}

// ReactivateProducts clears the failure counter of the given products, or of
// every failing product of region when ids is empty, and checks them again.
// It returns how many came back available.
func (s *Service) ReactivateProducts(ctx context.Context, region string, ids []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	region = strings.ToUpper(region)
	if len(ids) == 0 {
		failing, err := s.records.FailingProductIDs(ctx, region, s.cfg.FailureThreshold)
		if err != nil {
			logger.Error("failed to list failing products", "region", region, "error", err)
			return 0, err
		}
		ids = failing
	}
	ids = dedupe(ids)

	for _, id := range ids {
		rec, err := s.records.FindRecord(ctx, id, region)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return 0, err
		}
		rec.FailedChecks = 0
		if err := s.records.UpsertRecord(ctx, &rec); err != nil {
			logger.Error("failed to reset failure counter", "product_id", id, "region", region, "error", err)
			return 0, err
		}
	}

	s.run(ctx, region, ids)

	reactivated := 0
	for _, id := range ids {
		rec, err := s.records.FindRecord(ctx, id, region)
		if err == nil && rec.Usable() {
			reactivated++
		}
	}

	logger.Info("reactivation finished", "region", region, "checked", len(ids), "reactivated", reactivated)
	return reactivated, nil
}

// OptimizeFrequencies moves products clicked more than PopularClicks times
// in the last PopularWindow to the high refresh tier, everything else to
// medium.
func (s *Service) OptimizeFrequencies(ctx context.Context, region string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	region = strings.ToUpper(region)
	stats, err := s.clicks.TopProducts(ctx, region, s.now().Add(-s.cfg.PopularWindow), 1000)
	if err != nil {
		logger.Error("failed to load click stats", "region", region, "error", err)
		return 0, err
	}

	high := make([]string, 0, len(stats))
	for _, st := range stats {
		if st.Clicks > s.cfg.PopularClicks {
			high = append(high, st.ProductID)
		}
	}

	if err := s.records.AssignFrequencies(ctx, region, high); err != nil {
		logger.Error("failed to assign refresh frequencies", "region", region, "error", err)
		return 0, err
	}
	return len(high), nil
}

func (s *Service) run(ctx context.Context, region string, ids []string) Report {
	report := Report{Region: region, Planned: len(ids), StartedAt: s.now()}
	chunks := chunkIDs(ids, s.cfg.ChunkSize)

	var stopped atomic.Bool
	items := make([]workerpool.WorkItem[chunkResult], 0, len(chunks))
	for i, chunk := range chunks {
		items = append(items, workerpool.WorkItem[chunkResult]{
			ID: fmt.Sprintf("%s-%d", region, i),
			Execute: func(ctx context.Context) (chunkResult, error) {
				if stopped.Load() {
					return chunkResult{skipped: len(chunk)}, nil
				}
				decision, err := s.governor.CanProceed(ctx, region)
				if err != nil {
					return chunkResult{}, err
				}
				if !decision.Allowed {
					stopped.Store(true)
					return chunkResult{skipped: len(chunk), reason: decision.Reason}, nil
				}
				res := s.refreshChunk(ctx, region, chunk)
				if res.reason != "" {
					stopped.Store(true)
				}
				return res, nil
			},
		})
	}

	for i, res := range workerpool.Process(ctx, s.pool, items) {
		if res.Err != nil {
			logger.Warn("refresh chunk not run", "region", region, "chunk", res.ID, "error", res.Err)
			report.Skipped += len(chunks[i])
			continue
		}
		report.Refreshed += res.Result.refreshed
		report.Failed += res.Result.failed
		report.Skipped += res.Result.skipped
		report.Deactivated += res.Result.deactivated
		if report.StopReason == "" {
			report.StopReason = res.Result.reason
		}
	}

	report.FinishedAt = s.now()
	metrics.RefreshedProducts.WithLabelValues(region, "refreshed").Add(float64(report.Refreshed))
	metrics.RefreshedProducts.WithLabelValues(region, "failed").Add(float64(report.Failed))
	metrics.RefreshedProducts.WithLabelValues(region, "skipped").Add(float64(report.Skipped))
	return report
}

func (s *Service) refreshChunk(ctx context.Context, region string, ids []string) chunkResult {
	var res chunkResult

	found, err := s.market.GetByIDs(ctx, region, ids)
	refused := errors.Is(err, apperrors.ErrBudgetExceeded)
	switch {
	case refused:
		res.reason = err.Error()
	case err != nil:
		logger.Warn("marketplace lookup failed", "region", region, "ids", len(ids), "error", err)
		found = nil
	}

	byID := make(map[string]domain.ProductCandidate, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	for _, id := range ids {
		c, ok := byID[id]
		if !ok && refused {
			// never looked up; not a failed check
			res.skipped++
			continue
		}
		if !ok {
			deactivated, err := s.markFailure(ctx, region, id)
			if err != nil {
				logger.Error("failed to record failed check", "product_id", id, "region", region, "error", err)
			}
			res.failed++
			if deactivated {
				res.deactivated++
			}
			continue
		}
		if err := s.markChecked(ctx, region, c); err != nil {
			logger.Error("failed to store refreshed product", "product_id", id, "region", region, "error", err)
			res.failed++
			continue
		}
		res.refreshed++
	}

	return res
}

// markChecked stores a successful check and resets the failure counter.
func (s *Service) markChecked(ctx context.Context, region string, c domain.ProductCandidate) error {
	rec, err := s.records.FindRecord(ctx, c.ID, region)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	now := s.now()

	rec.ProductID = c.ID
	rec.RegionID = region
	rec.LocalPrice = c.CurrentPrice
	rec.Currency = s.currencies.Currency(region)
	rec.IsPrime = c.IsPrime
	if c.ProductURL != "" {
		rec.PurchaseLink = c.ProductURL
	}
	rec.FailedChecks = 0
	rec.LastCheckedAt = &now

	rec.IsAvailable = c.CurrentPrice > 0 && rec.PurchaseLink != ""
	if !rec.IsAvailable && rec.UnavailableSince == nil {
		rec.UnavailableSince = &now
	}

	if err := rec.Normalize(); err != nil {
		return err
	}
	return s.records.UpsertRecord(ctx, &rec)
}

// markFailure counts a failed check and reports whether this failure took
// the record out of service.
func (s *Service) markFailure(ctx context.Context, region, productID string) (bool, error) {
	rec, err := s.records.FindRecord(ctx, productID, region)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	now := s.now()

	rec.FailedChecks++
	rec.LastCheckedAt = &now

	deactivated := false
	if rec.FailedChecks >= s.cfg.FailureThreshold && rec.IsAvailable {
		rec.IsAvailable = false
		rec.UnavailableSince = &now
		deactivated = true
		logger.Warn("product marked unavailable after repeated failed checks",
			"product_id", productID, "region", region, "failed_checks", rec.FailedChecks)
	}

	return deactivated, s.records.UpsertRecord(ctx, &rec)
}

func chunkIDs(ids []string, size int) [][]string {
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		chunks = append(chunks, ids[start:min(start+size, len(ids))])
	}
	return chunks
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
