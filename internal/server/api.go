package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptoPortfolioBot/internal/common"
	"cryptoPortfolioBot/internal/finance"
	"cryptoPortfolioBot/internal/portfolio"
)

// LatestFunc returns a recently computed snapshot, if any.
type LatestFunc func(userID string) (portfolio.Snapshot, bool)

// API serves portfolio snapshots as JSON and PNG.
type API struct {
	snapshots portfolio.Snapshotter
	latest    LatestFunc
	maxAge    time.Duration
	loc       *time.Location
	logger    *common.Logger
	now       func() time.Time
}

// NewAPI creates the API. latest may be nil; cached snapshots older than
// maxAge are recomputed.
func NewAPI(snapshots portfolio.Snapshotter, latest LatestFunc, maxAge time.Duration, loc *time.Location, logger *common.Logger) *API {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &API{snapshots: snapshots, latest: latest, maxAge: maxAge, loc: loc, logger: logger, now: time.Now}
}

func (a *API) snapshot(ctx context.Context, user string, days int) (portfolio.Snapshot, error) {
	if a.latest != nil {
		if snap, ok := a.latest(user); ok && snap.WindowDays == days && a.now().Sub(snap.GeneratedAt) < a.maxAge {
			return snap, nil
		}
	}
	return a.snapshots.Snapshot(ctx, user, days)
}

func parseQuery(r *http.Request) (user string, days int, err error) {
	q := r.URL.Query()
	user = strings.TrimSpace(q.Get("user"))
	if user == "" {
		return "", 0, errors.New("user is required")
	}
	days = 7
	if v := q.Get("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days <= 0 {
			return "", 0, fmt.Errorf("days must be a positive integer, got %q", v)
		}
	}
	return user, days, nil
}

func (a *API) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	user, days, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snap, err := a.snapshot(r.Context(), user, days)
	if err != nil {
		a.logger.Error().Err(err).Str("user", user).Msg("Snapshot failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to write snapshot response")
	}
}

func (a *API) handleChart(w http.ResponseWriter, r *http.Request) {
	user, days, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snap, err := a.snapshot(r.Context(), user, days)
	if err != nil {
		a.logger.Error().Err(err).Str("user", user).Msg("Snapshot failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	img, err := finance.RenderProfitChart(snap.Points, finance.ChartOptions{
		Title:    fmt.Sprintf("Unrealized profit vs today (%dd)", days),
		Subtitle: strings.ToUpper(snap.Currency),
		Location: a.loc,
		Now:      a.now(),
	})
	if errors.Is(err, finance.ErrNotEnoughPoints) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
