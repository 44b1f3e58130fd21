package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vitos/loop_scanner/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

type loopsResponse struct {
	ScanID    string              `json:"scan_id,omitempty"`
	CreatedAt *time.Time          `json:"created_at,omitempty"`
	Count     int                 `json:"count"`
	Loops     []domain.LoopRecord `json:"loops"`
}

type scanSummary struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	RateCount int                `json:"rate_count"`
	Sources   []string           `json:"sources"`
	LoopCount int                `json:"loop_count"`
	Best      *domain.LoopRecord `json:"best,omitempty"`
}

func summarize(r *domain.ScanReport) scanSummary {
	sum := scanSummary{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		RateCount: r.RateCount,
		Sources:   r.Sources,
		LoopCount: len(r.Loops),
	}
	if len(r.Loops) > 0 {
		best := r.Loops[0]
		sum.Best = &best
	}
	return sum
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLoops serves GET /api/loops?type=single|cross-platform|multi-leg&limit=N
func (s *Server) handleLoops(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loopType, err := domain.ParseTopology(r.URL.Query().Get("type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if loopType == domain.TopologyMultiLeg {
		loops, err := s.service.MultiLegLoops()
		if errors.Is(err, domain.ErrMultiLegNotSupported) {
			http.Error(w, err.Error(), http.StatusNotImplemented)
			return
		}
		if err != nil {
			s.logger.Error("Failed to find multi-leg loops", zap.Error(err))
			http.Error(w, "Failed to find loops", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, loopsResponse{Count: len(loops), Loops: loops})
		return
	}

	report, err := s.service.Latest(r.Context())
	if errors.Is(err, domain.ErrNoScan) {
		http.Error(w, "No scan available yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("Failed to load latest scan", zap.Error(err))
		http.Error(w, "Failed to load latest scan", http.StatusInternalServerError)
		return
	}

	loops := report.Loops
	if loopType != "" {
		loops = report.Filter(loopType)
	}
	if limit > 0 && len(loops) > limit {
		loops = loops[:limit]
	}
	if loops == nil {
		loops = []domain.LoopRecord{}
	}

	created := report.CreatedAt
	s.writeJSON(w, http.StatusOK, loopsResponse{
		ScanID:    report.ID,
		CreatedAt: &created,
		Count:     len(loops),
		Loops:     loops,
	})
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultHistoryLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	reports, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list scans", zap.Error(err))
		http.Error(w, "Failed to list scans", http.StatusInternalServerError)
		return
	}

	summaries := make([]scanSummary, 0, len(reports))
	for _, rep := range reports {
		summaries = append(summaries, summarize(rep))
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Scan(r.Context())
	if report == nil {
		s.logger.Error("Manual scan failed", zap.Error(err))
		http.Error(w, "Scan failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	if err != nil {
		// the report is complete, only persisting it failed
		s.logger.Error("Manual scan not stored", zap.Error(err), zap.String("scan_id", report.ID))
	}
	s.writeJSON(w, http.StatusOK, summarize(report))
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	rates := s.service.LatestRates()
	if rates == nil {
		rates = []domain.RateEntry{}
	}
	s.writeJSON(w, http.StatusOK, rates)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}
