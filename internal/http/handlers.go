package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/xphabletx/envelope-lite/internal/core"
	"github.com/xphabletx/envelope-lite/internal/engine"
	"github.com/xphabletx/envelope-lite/internal/payday"
)

type errorResponse struct {
	Error string `json:"error"`
}

type baselineDTO struct {
	MonthlySpeed float64 `json:"monthly_speed"`
	Source       string  `json:"source"`
}

type allocationDTO struct {
	Percentage float64 `json:"percentage"`
	Frequency  string  `json:"frequency"`
}

type sessionResponse struct {
	SessionID   string                   `json:"session_id"`
	State       string                   `json:"state"`
	Baseline    map[string]baselineDTO   `json:"baseline"`
	Allocations map[string]allocationDTO `json:"allocations"`
}

type simulationDTO struct {
	Contribution        float64 `json:"contribution"`
	ContributionsNeeded int     `json:"contributions_needed"`
	DaysToTarget        int     `json:"days_to_target"`
	ReachDate           string  `json:"reach_date,omitempty"`
	OnTrack             bool    `json:"on_track"`
	AlreadyReached      bool    `json:"already_reached"`
}

type projectionResponse struct {
	State       string                   `json:"state"`
	Amount      float64                  `json:"amount"`
	Sum         float64                  `json:"allocation_sum"`
	Goals       map[string]simulationDTO `json:"goals"`
	DaysSaved   map[string]int           `json:"days_saved"`
	TotalSaved  int                      `json:"total_days_saved"`
	Reserve     float64                  `json:"reserve"`
	Allocations map[string]allocationDTO `json:"allocations"`
}

type amountRequest struct {
	Amount float64 `json:"amount"`
}

type allocationRequest struct {
	Percentage *float64 `json:"percentage"`
	Frequency  string   `json:"frequency"`
	Boost      *float64 `json:"boost"`
}

type executeRequest struct {
	ExternalInflow float64 `json:"external_inflow"`
}

type commitDTO struct {
	GoalID string  `json:"goal_id"`
	Amount float64 `json:"amount"`
	Error  string  `json:"error,omitempty"`
}

type topGoalDTO struct {
	GoalID    string `json:"goal_id"`
	DaysSaved int    `json:"days_saved"`
}

type executeResponse struct {
	State    string       `json:"state"`
	Reserve  float64      `json:"reserve"`
	Commits  []commitDTO  `json:"commits"`
	TopGoals []topGoalDTO `json:"top_goals"`
}

type incomeAllocationDTO struct {
	Spent    float64 `json:"spent"`
	Horizons float64 `json:"horizons"`
	Liquid   float64 `json:"liquid"`
}

type analyticsResponse struct {
	ExternalInflow   float64             `json:"external_inflow"`
	ExternalOutflow  float64             `json:"external_outflow"`
	NetImpact        float64             `json:"net_impact"`
	Efficiency       float64             `json:"efficiency"`
	HorizonVelocity  float64             `json:"horizon_velocity"`
	TotalHorizonGap  float64             `json:"total_horizon_gap"`
	HorizonImpact    float64             `json:"horizon_impact"`
	FixedBills       float64             `json:"fixed_bills"`
	Discretionary    float64             `json:"discretionary"`
	LiquidCash       float64             `json:"liquid_cash"`
	Feedback         string              `json:"feedback"`
	IsDeficit        bool                `json:"is_deficit"`
	IncomeAllocation incomeAllocationDTO `json:"income_allocation"`
	SkippedRecords   int                 `json:"skipped_records"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": s.backend,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	goals, history, err := s.planner.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load planning snapshot", "error", err)
		writeError(w, http.StatusBadGateway, "failed to load goals")
		return
	}

	sess := payday.NewSession(goals, history, s.freq, s.planner, s.debounce)
	id := s.newSessionID()
	s.putSession(id, sess)

	resp := sessionResponse{
		SessionID:   id,
		State:       string(sess.State()),
		Baseline:    make(map[string]baselineDTO),
		Allocations: make(map[string]allocationDTO),
	}
	for goalID, entry := range sess.Baseline() {
		resp.Baseline[goalID] = baselineDTO{
			MonthlySpeed: entry.MonthlySpeed,
			Source:       string(entry.Source),
		}
	}
	for _, a := range sess.Allocations() {
		resp.Allocations[a.GoalID] = allocationDTO{
			Percentage: a.Percentage,
			Frequency:  string(a.Frequency),
		}
	}

	slog.InfoContext(r.Context(), "Planning session opened",
		"session_id", id, "goals", len(resp.Allocations))
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSetAmount(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.getSession(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	// Bad numeric input degrades to zero rather than erroring.
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.Amount = 0
	}

	entry.mu.Lock()
	entry.session.SetAmount(req.Amount)
	state := entry.session.State()
	entry.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"state":  string(state),
		"amount": req.Amount,
	})
}

func (s *Server) handleUpdateAllocation(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.getSession(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	goalID := r.PathValue("goalID")

	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = allocationRequest{}
	}

	entry.mu.Lock()
	if req.Percentage != nil {
		entry.session.UpdateAllocation(goalID, *req.Percentage)
	}
	if req.Frequency != "" {
		entry.session.SetFrequency(goalID, core.Frequency(req.Frequency))
	}
	if req.Boost != nil {
		entry.session.SetBoost(goalID, *req.Boost)
	}
	resp := map[string]any{
		"goal_id":    goalID,
		"percentage": entry.session.Percentage(goalID),
		"sum":        entry.session.Sum(),
	}
	entry.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBeginReview(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.getSession(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	entry.mu.Lock()
	err := entry.session.BeginReview()
	state := entry.session.State()
	entry.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(state)})
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.getSession(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	entry.mu.Lock()
	snap := entry.session.Snapshot()
	resp := projectionResponse{
		State:       string(snap.State),
		Amount:      snap.Amount,
		Sum:         snap.Sum,
		Goals:       make(map[string]simulationDTO, len(snap.Simulation)),
		DaysSaved:   snap.TimeSaved.PerGoal,
		TotalSaved:  snap.TimeSaved.Total,
		Reserve:     snap.Reserve,
		Allocations: make(map[string]allocationDTO),
	}
	for goalID, sim := range snap.Simulation {
		resp.Goals[goalID] = toSimulationDTO(sim)
	}
	for _, a := range entry.session.Allocations() {
		resp.Allocations[a.GoalID] = allocationDTO{
			Percentage: a.Percentage,
			Frequency:  string(a.Frequency),
		}
	}
	entry.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.getSession(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.ExternalInflow = 0
	}

	entry.mu.Lock()
	entry.session.SetExternalInflow(req.ExternalInflow)
	commits, err := entry.session.Execute(r.Context())
	snap := entry.session.Snapshot()
	top := entry.session.TopGoals(s.topGoals)
	entry.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	resp := executeResponse{
		State:   string(snap.State),
		Reserve: snap.Reserve,
	}
	for _, c := range commits {
		dto := commitDTO{GoalID: c.GoalID, Amount: c.Amount.Float()}
		if c.Err != nil {
			dto.Error = c.Err.Error()
		}
		resp.Commits = append(resp.Commits, dto)
	}
	for _, g := range top {
		resp.TopGoals = append(resp.TopGoals, topGoalDTO{GoalID: g.GoalID, DaysSaved: g.DaysSaved})
	}

	slog.InfoContext(r.Context(), "Payday execution finished",
		"state", resp.State, "commits", len(resp.Commits))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, ok := s.getSession(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	entry.mu.Lock()
	entry.session.Cancel()
	entry.mu.Unlock()
	s.dropSession(id)

	writeJSON(w, http.StatusOK, map[string]string{"state": string(payday.StateCancelled)})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	start, end := parseWindow(r)
	cacheKey := start.Format(time.RFC3339) + "|" + end.Format(time.RFC3339)

	if cached, ok := s.analyticsCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	goals, records, err := s.planner.Window(r.Context(), start, end)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load analytics window", "error", err)
		writeError(w, http.StatusBadGateway, "failed to load transactions")
		return
	}

	stats := engine.Analyze(records, goals)
	split := stats.IncomeAllocation()
	resp := analyticsResponse{
		ExternalInflow:  stats.ExternalInflow.Float(),
		ExternalOutflow: stats.ExternalOutflow.Float(),
		NetImpact:       stats.NetImpact.Float(),
		Efficiency:      stats.Efficiency,
		HorizonVelocity: stats.HorizonVelocity.Float(),
		TotalHorizonGap: stats.TotalHorizonGap.Float(),
		HorizonImpact:   stats.HorizonImpact,
		FixedBills:      stats.FixedBills.Float(),
		Discretionary:   stats.Discretionary.Float(),
		LiquidCash:      stats.LiquidCash.Float(),
		Feedback:        string(stats.Feedback),
		IsDeficit:       stats.IsDeficit(),
		IncomeAllocation: incomeAllocationDTO{
			Spent:    split.Spent,
			Horizons: split.Horizons,
			Liquid:   split.Liquid,
		},
		SkippedRecords: stats.Skipped,
	}

	s.analyticsCache.Set(cacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

// parseWindow reads the start/end query parameters, defaulting to the last
// 30 days. Dates accept RFC3339 or plain YYYY-MM-DD.
func parseWindow(r *http.Request) (time.Time, time.Time) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)

	if v := r.URL.Query().Get("start"); v != "" {
		if t, ok := parseDate(v); ok {
			start = t
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if t, ok := parseDate(v); ok {
			end = t
		}
	}
	if end.Before(start) {
		start, end = end, start
	}
	return start, end
}

func parseDate(v string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func toSimulationDTO(sim engine.SimulationResult) simulationDTO {
	dto := simulationDTO{
		Contribution:        sim.Contribution,
		ContributionsNeeded: sim.ContributionsNeeded,
		DaysToTarget:        sim.DaysToTarget,
		OnTrack:             sim.OnTrack,
		AlreadyReached:      sim.AlreadyReached,
	}
	if sim.HasReachDate {
		dto.ReachDate = sim.ReachDate.Format("2006-01-02")
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
