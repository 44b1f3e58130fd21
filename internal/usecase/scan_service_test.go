package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/loop_scanner/internal/domain"
	"go.uber.org/zap"
)

type MockRateSource struct {
	name  string
	rates []domain.RateEntry
	err   error
}

func (m *MockRateSource) Name() string { return m.name }

func (m *MockRateSource) FetchRates(ctx context.Context) ([]domain.RateEntry, error) {
	return m.rates, m.err
}

type MockScanRepository struct {
	mu      sync.Mutex
	saved   []*domain.ScanReport
	saveErr error
}

func (m *MockScanRepository) SaveScan(ctx context.Context, report *domain.ScanReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, report)
	return nil
}

func (m *MockScanRepository) GetLatestScan(ctx context.Context) (*domain.ScanReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil, domain.ErrNoScan
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *MockScanRepository) ListScans(ctx context.Context, limit int) ([]*domain.ScanReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved, nil
}

type MockNotifier struct {
	reports []*domain.ScanReport
	err     error
}

func (m *MockNotifier) Notify(ctx context.Context, report *domain.ScanReport) error {
	m.reports = append(m.reports, report)
	return m.err
}

func ptr(v float64) *float64 { return &v }

func kaminoRates() []domain.RateEntry {
	return []domain.RateEntry{
		{Platform: "kamino", Market: "OnRe Market", Token: "ONyc", SupplyAPY: ptr(0), LTV: 50, CanCollateral: true},
		{Platform: "kamino", Market: "OnRe Market", Token: "USDC", SupplyAPY: ptr(3), BorrowAPY: ptr(6), CanBorrow: true},
	}
}

func jupiterRates() []domain.RateEntry {
	return []domain.RateEntry{
		{Platform: "jupiter", Market: "Jupiter Earn", Token: "USDC", SupplyAPY: ptr(7)},
	}
}

func testScanConfig() ScanConfig {
	return ScanConfig{
		Policy: domain.DefaultPolicy(),
		Fallbacks: domain.Fallbacks{
			Underlying: map[string]float64{"ONyc": 13.35},
		},
	}
}

func TestScanService_Scan(t *testing.T) {
	repo := &MockScanRepository{}
	notifier := &MockNotifier{}
	sources := []domain.RateSource{
		&MockRateSource{name: "kamino", rates: kaminoRates()},
		&MockRateSource{name: "jupiter", rates: jupiterRates()},
		&MockRateSource{name: "broken", err: errors.New("timeout")},
	}

	svc := NewScanService(sources, repo, notifier, testScanConfig(), zap.NewNop())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.timeNow = func() time.Time { return fixed }

	report, err := svc.Scan(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, fixed, report.CreatedAt)
	assert.Equal(t, 3, report.RateCount)
	assert.Equal(t, []string{"kamino", "jupiter"}, report.Sources)

	single := report.Filter(domain.TopologySingle)
	cross := report.Filter(domain.TopologyCross)
	require.Len(t, single, 1)
	require.Len(t, cross, 1)

	// 13.35 underlying + 7 * 0.5 - 6
	assert.InDelta(t, 10.85, cross[0].BestNet, 0.000001)
	assert.Equal(t, "ONyc@kam -> USDC@jup", cross[0].Path)

	for i := 1; i < len(report.Loops); i++ {
		assert.GreaterOrEqual(t, report.Loops[i-1].BestNet, report.Loops[i].BestNet)
	}

	require.Len(t, repo.saved, 1)
	assert.Same(t, report, repo.saved[0])
	require.Len(t, notifier.reports, 1)

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Same(t, report, latest)
	assert.Len(t, svc.LatestRates(), 3)
}

func TestScanService_AllSourcesFail(t *testing.T) {
	sources := []domain.RateSource{
		&MockRateSource{name: "a", err: errors.New("boom")},
		&MockRateSource{name: "b", err: errors.New("bang")},
	}
	svc := NewScanService(sources, nil, nil, testScanConfig(), zap.NewNop())

	_, err := svc.Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 rate sources failed")
	assert.Contains(t, err.Error(), "boom")

	_, err = svc.Latest(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoScan)
}

func TestScanService_NoSources(t *testing.T) {
	svc := NewScanService(nil, nil, nil, testScanConfig(), zap.NewNop())
	_, err := svc.Scan(context.Background())
	assert.Error(t, err)
}

func TestScanService_SaveFailure(t *testing.T) {
	repo := &MockScanRepository{saveErr: errors.New("disk full")}
	svc := NewScanService([]domain.RateSource{&MockRateSource{name: "kamino", rates: kaminoRates()}}, repo, nil, testScanConfig(), zap.NewNop())

	report, err := svc.Scan(context.Background())
	require.Error(t, err)
	assert.NotNil(t, report)
}

func TestScanService_NotifierFailureIsNotFatal(t *testing.T) {
	notifier := &MockNotifier{err: errors.New("telegram down")}
	svc := NewScanService([]domain.RateSource{&MockRateSource{name: "kamino", rates: kaminoRates()}}, nil, notifier, testScanConfig(), zap.NewNop())

	_, err := svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, notifier.reports, 1)
}

func TestScanService_LatestFallsBackToRepository(t *testing.T) {
	stored := &domain.ScanReport{ID: "stored"}
	repo := &MockScanRepository{saved: []*domain.ScanReport{stored}}
	svc := NewScanService(nil, repo, nil, testScanConfig(), zap.NewNop())

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored", latest.ID)

	history, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestScanService_MultiLegNotSupported(t *testing.T) {
	svc := NewScanService(nil, nil, nil, testScanConfig(), zap.NewNop())

	_, err := svc.MultiLegLoops()
	assert.ErrorIs(t, err, domain.ErrMultiLegNotSupported)
}
