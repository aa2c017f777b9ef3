package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/events"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/infra/storage"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/quest"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/radio"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/sensor"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/trigger"
)

// QuestService is the quest surface of the game context.
type QuestService interface {
	PlayerState() (quest.PlayerState, error)
	Catalog() []quest.Definition
	Activate(ctx context.Context, questID int) (quest.Instance, error)
	Complete(ctx context.Context, questID int) (quest.Instance, error)
	AddDefinition(name, description string, kind trigger.Kind, target uint32) (quest.Definition, error)
	Reset(ctx context.Context) error
}

// SensorService exposes the sampler.
type SensorService interface {
	Snapshot() sensor.Snapshot
	StartLogging(label string) error
	StopLogging() int
	LoggingStatus() (active bool, label string, samples int)
	ExportLog(w io.Writer) (int, error)
}

// TriggerService exposes the trigger evaluator.
type TriggerService interface {
	Report(s sensor.Snapshot) map[trigger.Kind]bool
	ClassifySmoke(s sensor.Snapshot) trigger.Classification
	ClassifierInfo() trigger.ModelInfo
}

// PeerService lists badges in radio range.
type PeerService interface {
	Peers() []radio.Peer
}

// APIConfig wires the control API. Peers, History and Events may be nil.
type APIConfig struct {
	BadgeID  string
	Quests   QuestService
	Sensors  SensorService
	Triggers TriggerService
	Peers    PeerService
	History  *storage.History
	Events   *events.EventLog
	Logger   *logger.Logger
}

// API is the badge's HTTP control surface: quest management, sensor
// readouts and VOC log collection.
type API struct {
	cfg    APIConfig
	logger *logger.Logger
}

func NewAPI(cfg APIConfig) *API {
	return &API{cfg: cfg, logger: cfg.Logger}
}

// RegisterRoutes sets up the API routes.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", a.HandleState)
	mux.HandleFunc("/api/quests", a.HandleQuests)
	mux.HandleFunc("/api/quests/activate", a.HandleActivate)
	mux.HandleFunc("/api/quests/complete", a.HandleComplete)
	mux.HandleFunc("/api/sensors", a.HandleSensors)
	mux.HandleFunc("/api/peers", a.HandlePeers)
	mux.HandleFunc("/api/voc-logging/start", a.HandleStartLogging)
	mux.HandleFunc("/api/voc-logging/stop", a.HandleStopLogging)
	mux.HandleFunc("/api/voc-logging/export", a.HandleExportLog)
	mux.HandleFunc("/api/reset", a.HandleReset)
	mux.HandleFunc("/api/history", a.HandleHistory)
	mux.HandleFunc("/api/history/stats", a.HandleStats)
}

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	BadgeID     string            `json:"badge_id"`
	ActiveCount int               `json:"active_count"`
	Player      quest.PlayerState `json:"player"`
}

// HandleState returns the player's progress.
// GET /api/state
func (a *API) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	state, err := a.cfg.Quests.PlayerState()
	if err != nil {
		a.questError(w, err)
		return
	}
	a.jsonSuccess(w, http.StatusOK, StateResponse{
		BadgeID:     a.cfg.BadgeID,
		ActiveCount: state.ActiveCount(),
		Player:      state,
	})
}

// NewQuestRequest is the body of POST /api/quests.
type NewQuestRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Trigger     trigger.Kind `json:"trigger"`
	Target      uint32       `json:"target"`
}

// HandleQuests lists the catalog or adds a custom quest.
// GET|POST /api/quests
func (a *API) HandleQuests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.jsonSuccess(w, http.StatusOK, map[string]any{"quests": a.cfg.Quests.Catalog()})
	case http.MethodPost:
		var req NewQuestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		d, err := a.cfg.Quests.AddDefinition(req.Name, req.Description, req.Trigger, req.Target)
		if err != nil {
			a.questError(w, err)
			return
		}
		a.jsonSuccess(w, http.StatusCreated, d)
	default:
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// QuestRequest names a quest by id.
type QuestRequest struct {
	QuestID int `json:"quest_id"`
}

// HandleActivate starts a quest.
// POST /api/quests/activate
func (a *API) HandleActivate(w http.ResponseWriter, r *http.Request) {
	a.questAction(w, r, a.cfg.Quests.Activate)
}

// HandleComplete finishes a quest by hand.
// POST /api/quests/complete
func (a *API) HandleComplete(w http.ResponseWriter, r *http.Request) {
	a.questAction(w, r, a.cfg.Quests.Complete)
}

func (a *API) questAction(w http.ResponseWriter, r *http.Request, action func(context.Context, int) (quest.Instance, error)) {
	if r.Method != http.MethodPost {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req QuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	inst, err := action(r.Context(), req.QuestID)
	if err != nil {
		a.questError(w, err)
		return
	}
	a.jsonSuccess(w, http.StatusOK, inst)
}

// SensorResponse is the body of GET /api/sensors.
type SensorResponse struct {
	Snapshot   sensor.Snapshot        `json:"snapshot"`
	Triggers   map[trigger.Kind]bool  `json:"triggers"`
	Smoke      trigger.Classification `json:"smoke"`
	SmokeLabel string                 `json:"smoke_label"`
	Classifier trigger.ModelInfo      `json:"classifier"`
	Logging    LoggingStatus          `json:"logging"`
}

// LoggingStatus describes the VOC log.
type LoggingStatus struct {
	Active  bool   `json:"active"`
	Label   string `json:"label,omitempty"`
	Samples int    `json:"samples"`
}

func (a *API) loggingStatus() LoggingStatus {
	active, label, n := a.cfg.Sensors.LoggingStatus()
	return LoggingStatus{Active: active, Label: label, Samples: n}
}

// HandleSensors returns the latest snapshot and what it would trigger.
// GET /api/sensors
func (a *API) HandleSensors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := a.cfg.Sensors.Snapshot()
	smoke := a.cfg.Triggers.ClassifySmoke(snap)
	a.jsonSuccess(w, http.StatusOK, SensorResponse{
		Snapshot:   snap,
		Triggers:   a.cfg.Triggers.Report(snap),
		Smoke:      smoke,
		SmokeLabel: smoke.Class.String(),
		Classifier: a.cfg.Triggers.ClassifierInfo(),
		Logging:    a.loggingStatus(),
	})
}

// HandlePeers lists badges in range.
// GET /api/peers
func (a *API) HandlePeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	peers := []radio.Peer{}
	if a.cfg.Peers != nil {
		peers = a.cfg.Peers.Peers()
	}
	a.jsonSuccess(w, http.StatusOK, map[string]any{"peers": peers})
}

// HandleStartLogging starts labelled VOC collection.
// POST /api/voc-logging/start {"label": "cigarette"}
func (a *API) HandleStartLogging(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.cfg.Sensors.StartLogging(req.Label); err != nil {
		a.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.jsonSuccess(w, http.StatusOK, a.loggingStatus())
}

// HandleStopLogging stops VOC collection.
// POST /api/voc-logging/stop
func (a *API) HandleStopLogging(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.cfg.Sensors.StopLogging()
	a.jsonSuccess(w, http.StatusOK, a.loggingStatus())
}

// HandleExportLog downloads the collected samples as CSV and clears them.
// GET /api/voc-logging/export
func (a *API) HandleExportLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var buf bytes.Buffer
	n, err := a.cfg.Sensors.ExportLog(&buf)
	if errors.Is(err, sensor.ErrNoSamples) {
		a.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("VOC export failed: %v", err)
		a.jsonError(w, "Export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="voc_log.csv"`)
	w.Header().Set("X-Sample-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleReset clears all player progress.
// POST /api/reset
func (a *API) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := a.cfg.Quests.Reset(r.Context()); err != nil {
		a.questError(w, err)
		return
	}
	a.logger.Event("PLAYER_RESET", a.cfg.BadgeID, "Progress cleared via API")
	a.jsonSuccess(w, http.StatusOK, map[string]any{"success": true})
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	BadgeID     string               `json:"badge_id"`
	GeneratedAt string               `json:"generated_at"`
	Tally       storage.Tally        `json:"tally"`
	Entries     []storage.RecapEntry `json:"entries"`
}

// HandleHistory returns the stored quest history.
// GET /api/history?since=RFC3339&limit=N&quest_id=N&type=EVENT_TYPE
func (a *API) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.cfg.History == nil {
		a.jsonError(w, "History not available", http.StatusNotFound)
		return
	}

	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			a.jsonError(w, "Invalid since", http.StatusBadRequest)
			return
		}
		since = t
	}
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			a.jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	query := storage.RecapQuery{Since: since, Limit: limit, EventType: r.URL.Query().Get("type")}
	if s := r.URL.Query().Get("quest_id"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil || id <= 0 {
			a.jsonError(w, "Invalid quest_id", http.StatusBadRequest)
			return
		}
		query.QuestID = id
	}

	entries, err := a.cfg.History.Query(r.Context(), a.cfg.BadgeID, query)
	if err != nil {
		a.logger.Error("History query failed: %v", err)
		a.jsonError(w, "History query failed", http.StatusInternalServerError)
		return
	}
	tally, err := a.cfg.History.Tally(r.Context(), a.cfg.BadgeID)
	if err != nil {
		a.logger.Error("History tally failed: %v", err)
		a.jsonError(w, "History query failed", http.StatusInternalServerError)
		return
	}
	a.jsonSuccess(w, http.StatusOK, HistoryResponse{
		BadgeID:     a.cfg.BadgeID,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Tally:       tally,
		Entries:     entries,
	})
}

// HandleStats counts this session's events by type, optionally for one quest.
// GET /api/history/stats?quest_id=N
func (a *API) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	questID := 0
	if s := r.URL.Query().Get("quest_id"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil || id <= 0 {
			a.jsonError(w, "Invalid quest_id", http.StatusBadRequest)
			return
		}
		questID = id
	}

	stats := map[string]int{"total_events": 0}
	if a.cfg.Events != nil {
		if questID > 0 {
			for _, e := range a.cfg.Events.ByQuest(questID) {
				stats[string(e.Type)]++
				stats["total_events"]++
			}
		} else {
			for _, t := range events.EventTypes {
				if n := len(a.cfg.Events.ByType(t)); n > 0 {
					stats[string(t)] = n
				}
			}
			stats["total_events"] = a.cfg.Events.Len()
		}
	}
	resp := map[string]any{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"stats":        stats,
	}
	if questID > 0 {
		resp["quest_id"] = questID
	}
	a.jsonSuccess(w, http.StatusOK, resp)
}

// questError maps engine errors to HTTP status codes.
func (a *API) questError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, quest.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, quest.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, quest.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, quest.ErrResourceExhausted):
		status, code = http.StatusConflict, "resource_exhausted"
	default:
		a.logger.Error("Quest operation failed: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "code": code})
}

// jsonError sends an error response.
func (a *API) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func (a *API) jsonSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
