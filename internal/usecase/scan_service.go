package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/loop_scanner/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ScanConfig struct {
	Policy    domain.Policy
	Fallbacks domain.Fallbacks
	Aliases   domain.PlatformAliases
}

// ScanService fetches every rate source, runs the finders and publishes the
// resulting report.
type ScanService struct {
	sources    []domain.RateSource
	repo       domain.ScanRepository
	notifier   domain.Notifier
	normalizer *Normalizer
	single     *SinglePlatformFinder
	cross      *CrossPlatformFinder
	multi      *MultiLegFinder
	policy     domain.Policy
	aliases    domain.PlatformAliases
	logger     *zap.Logger

	mu          sync.RWMutex
	latest      *domain.ScanReport
	latestRates []domain.RateEntry

	timeNow func() time.Time // For testing
}

// NewScanService wires a scan pipeline. repo and notifier may be nil.
func NewScanService(sources []domain.RateSource, repo domain.ScanRepository, notifier domain.Notifier, cfg ScanConfig, logger *zap.Logger) *ScanService {
	aliases := cfg.Aliases
	if aliases == nil {
		aliases = domain.DefaultPlatformAliases()
	}
	return &ScanService{
		sources:    sources,
		repo:       repo,
		notifier:   notifier,
		normalizer: NewNormalizer(cfg.Fallbacks, logger),
		single:     NewSinglePlatformFinder(cfg.Policy),
		cross:      NewCrossPlatformFinder(cfg.Policy),
		multi:      NewMultiLegFinder(),
		policy:     cfg.Policy,
		aliases:    aliases,
		logger:     logger,
		timeNow:    time.Now,
	}
}

// Scan runs one full pass. Failing sources are skipped; the scan fails only
// when every source fails.
func (s *ScanService) Scan(ctx context.Context) (*domain.ScanReport, error) {
	raw, names, err := s.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	rates := s.normalizer.Normalize(raw)
	report := s.Analyze(rates)
	report.Sources = names

	s.logger.Info("Scan complete",
		zap.String("scan_id", report.ID),
		zap.Int("raw_rates", len(raw)),
		zap.Int("rates", len(rates)),
		zap.Int("single_loops", len(report.Filter(domain.TopologySingle))),
		zap.Int("cross_loops", len(report.Filter(domain.TopologyCross))))

	s.mu.Lock()
	s.latest = report
	s.latestRates = rates
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SaveScan(ctx, report); err != nil {
			return report, fmt.Errorf("failed to save scan %s: %w", report.ID, err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, report); err != nil {
			s.logger.Error("Failed to send scan notification", zap.Error(err), zap.String("scan_id", report.ID))
		}
	}

	return report, nil
}

// Analyze runs both finders over already normalized rates and merges their
// records into one list ranked by best net APY.
func (s *ScanService) Analyze(rates []domain.RateEntry) *domain.ScanReport {
	levels := s.policy.LeverageLevels

	var records []domain.LoopRecord
	for _, l := range s.single.Find(rates) {
		records = append(records, l.Record(s.aliases, levels...))
	}
	for _, l := range s.cross.Find(rates) {
		records = append(records, l.Record(s.aliases, levels...))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].BestNet > records[j].BestNet
	})

	return &domain.ScanReport{
		ID:        uuid.NewString(),
		CreatedAt: s.timeNow().UTC(),
		RateCount: len(rates),
		Loops:     records,
	}
}

func (s *ScanService) fetchAll(ctx context.Context) ([]domain.RateEntry, []string, error) {
	if len(s.sources) == 0 {
		return nil, nil, errors.New("no rate sources configured")
	}

	results := make([][]domain.RateEntry, len(s.sources))
	errs := make([]error, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i := range s.sources {
		i, src := i, s.sources[i]
		g.Go(func() error {
			start := s.timeNow()
			rates, err := src.FetchRates(gctx)
			if err != nil {
				s.logger.Error("Failed to fetch rates", zap.String("source", src.Name()), zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				return nil
			}
			s.logger.Debug("Fetched rates",
				zap.String("source", src.Name()),
				zap.Int("count", len(rates)),
				zap.Duration("took", s.timeNow().Sub(start)))
			results[i] = rates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		all    []domain.RateEntry
		names  []string
		failed []error
	)
	for i, src := range s.sources {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		all = append(all, results[i]...)
		names = append(names, src.Name())
	}

	if len(failed) == len(s.sources) {
		return nil, nil, fmt.Errorf("all %d rate sources failed: %w", len(failed), errors.Join(failed...))
	}
	return all, names, nil
}

// Latest returns the most recent report, from memory or from storage.
func (s *ScanService) Latest(ctx context.Context) (*domain.ScanReport, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}

	if s.repo == nil {
		return nil, domain.ErrNoScan
	}
	report, err := s.repo.GetLatestScan(ctx)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// History lists stored reports, newest first.
func (s *ScanService) History(ctx context.Context, limit int) ([]*domain.ScanReport, error) {
	if s.repo != nil {
		return s.repo.ListScans(ctx, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, nil
	}
	return []*domain.ScanReport{s.latest}, nil
}

// LatestRates returns the normalized rates of the last scan.
func (s *ScanService) LatestRates() []domain.RateEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RateEntry(nil), s.latestRates...)
}

// MultiLegLoops searches the last scan's rates for 3+ leg chains.
func (s *ScanService) MultiLegLoops() ([]domain.LoopRecord, error) {
	loops, err := s.multi.Find(s.LatestRates())
	if err != nil {
		return nil, err
	}

	records := make([]domain.LoopRecord, 0, len(loops))
	for _, l := range loops {
		records = append(records, l.Record(s.aliases, s.policy.LeverageLevels...))
	}
	return records, nil
}
