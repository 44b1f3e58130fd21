package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/loop_scanner/internal/config"
	"github.com/vitos/loop_scanner/internal/domain"
	"go.uber.org/zap"
)

const fixtureRates = `[
  {"platform":"kamino","market":"OnRe Market","token":"ONyc","supply_apy":0,"ltv":50,"can_collateral":true},
  {"platform":"kamino","market":"OnRe Market","token":"USDC","supply_apy":3,"borrow_apy":6,"can_borrow":true},
  {"platform":"jupiter","market":"Jupiter Earn","token":"USDC","supply_apy":7}
]`

func writeFixtureConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ratesPath := filepath.Join(dir, "rates.json")
	require.NoError(t, os.WriteFile(ratesPath, []byte(fixtureRates), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
logging:
  level: error
sources:
  - name: fixture
    type: file
    path: `+ratesPath+`
`), 0o644))
	// flags are bound to package vars and survive between Execute calls
	t.Cleanup(func() { scanFlags.loopType = "" })
	return cfgPath
}

func TestScanCommand_JSON(t *testing.T) {
	cfgPath := writeFixtureConfig(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "scan", "--json", "--no-store", "--type", "cross-platform"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	var report domain.ScanReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 3, report.RateCount)
	assert.Equal(t, []string{"fixture"}, report.Sources)
	require.Len(t, report.Loops, 1)
	assert.Equal(t, "ONyc@kam -> USDC@jup", report.Loops[0].Path)
	// ONyc gets its underlying yield from the built-in fallbacks
	assert.InDelta(t, 10.85, report.Loops[0].BestNet, 0.000001)
}

func TestScanCommand_LoopType(t *testing.T) {
	cfgPath := writeFixtureConfig(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "scan", "--json", "--no-store", "--type", "cross"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	var report domain.ScanReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Loops, 1)
	assert.Equal(t, domain.TopologyCross, report.Loops[0].Type)

	out.Reset()
	rootCmd.SetArgs([]string{"--config", cfgPath, "scan", "--no-store", "--type", "bogus"})
	err := rootCmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnknownTopology)
	assert.Empty(t, out.String())

	rootCmd.SetArgs([]string{"--config", cfgPath, "scan", "--no-store", "--type", "multi-leg"})
	err = rootCmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, domain.ErrMultiLegNotSupported)
	assert.Empty(t, out.String())
}

func TestPrintLoops(t *testing.T) {
	loops := []domain.LoopRecord{
		{
			Type: domain.TopologyCross, Path: "ONyc@kam -> USDC@jup", TotalSupply: 13.35, BorrowAPY: 6, LTV: 50, BestNet: 10.85,
			CrossReturns: &domain.CrossReturns{EffectiveLeverage: 1.5},
		},
		{
			Type: domain.TopologySingle, Platform: "kamino", Market: "Main", Collateral: "JitoSOL", Borrow: "SOL",
			TotalSupply: 7.9, BorrowAPY: 5, LTV: 85, BestNet: 19.5,
			SingleReturns: &domain.SingleReturns{BestLev: "6x"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printLoops(&buf, loops))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.Contains(t, lines[1], "ONyc@kam -> USDC@jup")
	assert.Contains(t, lines[1], "1.50x")
	assert.Contains(t, lines[1], "10.85%")
	assert.Contains(t, lines[2], "JitoSOL/SOL kamino:Main")
	assert.Contains(t, lines[2], "6x")
}

func TestPrintHistory(t *testing.T) {
	reports := []*domain.ScanReport{
		{ID: "b", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), RateCount: 3, Loops: []domain.LoopRecord{{BestNet: 4.5}}},
		{ID: "a", RateCount: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, printHistory(&buf, reports))
	out := buf.String()
	assert.Contains(t, out, "2026-01-02 03:04:05")
	assert.Contains(t, out, "4.50%")
	assert.Contains(t, out, "-")
}

func TestBuildSources(t *testing.T) {
	cfg := config.Default()
	cfg.Sources = []config.SourceConfig{
		{Name: "f", Type: config.SourceFile, Path: "x.json"},
		{Name: "h", Type: config.SourceHTTP, URL: "http://localhost/rates"},
		{Name: "s", Type: config.SourceStream, URL: "ws://localhost/stream"},
	}

	sources, closers := buildSources(cfg, zap.NewNop())
	require.Len(t, sources, 3)
	assert.Len(t, closers, 1)
	for i, name := range []string{"f", "h", "s"} {
		assert.Equal(t, name, sources[i].Name())
	}
	// never connected
	assert.NoError(t, closers[0]())
}

func TestScanContext(t *testing.T) {
	ctx, cancel := scanContext(context.Background(), 0)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)

	ctx, cancel2 := scanContext(context.Background(), time.Minute)
	defer cancel2()
	_, ok = ctx.Deadline()
	assert.True(t, ok)
}
