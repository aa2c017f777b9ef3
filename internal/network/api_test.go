package network

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/events"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/infra/storage"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/quest"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/radio"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/sensor"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/trigger"
)

type stubPeers []radio.Peer

func (p stubPeers) Peers() []radio.Peer { return p }

type apiFixture struct {
	server  *httptest.Server
	engine  *quest.Engine
	sampler *sensor.Sampler
	env     *sensor.SimulatedBME690
	log     *events.EventLog
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	env := sensor.NewSimulatedBME690(1)
	motion := sensor.NewSimulatedBMI270(1)
	sampler := sensor.NewSampler(env, motion, sensor.SamplerConfig{}, logger.Discard(), nil)
	if err := sampler.SampleOnce(ctx); err != nil {
		t.Fatalf("SampleOnce: %v", err)
	}
	eval := trigger.NewEvaluator(sampler, nil, nil, 0, logger.Discard())

	eventLog := events.NewEventLog(nil)
	engine := quest.NewEngine(quest.NewBlobGateway(storage.NewMemoryBlobStore()), eval, quest.Options{
		Events:  eventLog,
		BadgeID: "badge-test",
	})
	if err := engine.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	api := NewAPI(APIConfig{
		BadgeID:  "badge-test",
		Quests:   engine,
		Sensors:  sampler,
		Triggers: eval,
		Peers:    stubPeers{{BadgeID: "badge-2", LastSeen: time.Unix(100, 0)}},
		Events:   eventLog,
		Logger:   logger.Discard(),
	})
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &apiFixture{server: srv, engine: engine, sampler: sampler, env: env, log: eventLog}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestQuestLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/quests/activate", `{"quest_id": 6}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d", resp.StatusCode)
	}
	inst := decode[quest.Instance](t, resp)
	if inst.QuestID != 6 || inst.Status != quest.StatusActive {
		t.Fatalf("activated instance = %+v", inst)
	}

	resp = f.do(t, http.MethodPost, "/api/quests/complete", `{"quest_id": 6}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/api/state", "")
	state := decode[StateResponse](t, resp)
	if state.BadgeID != "badge-test" || state.Player.CompletedCount != 1 || state.Player.TotalScore != quest.CompletionAward {
		t.Fatalf("state = %+v", state)
	}
	if state.ActiveCount != 0 {
		t.Errorf("active count = %d, want 0", state.ActiveCount)
	}

	resp = f.do(t, http.MethodPost, "/api/reset", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}
	ps, _ := f.engine.PlayerState()
	if len(ps.Quests) != 0 || ps.TotalScore != 0 {
		t.Errorf("state after reset = %+v", ps)
	}
}

func TestQuestErrorCodes(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/quests/activate", `{"quest_id": 1}`)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown quest", "/api/quests/activate", `{"quest_id": 8}`, http.StatusBadRequest, "invalid_argument"},
		{"out of range", "/api/quests/activate", `{"quest_id": 0}`, http.StatusBadRequest, "invalid_argument"},
		{"already active", "/api/quests/activate", `{"quest_id": 1}`, http.StatusConflict, "invalid_state"},
		{"not active", "/api/quests/complete", `{"quest_id": 2}`, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			body := decode[map[string]string](t, resp)
			if body["code"] != tt.code {
				t.Errorf("code = %q, want %q", body["code"], tt.code)
			}
		})
	}
}

func TestAddQuestOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/quests",
		`{"name":"Night Walk","description":"Walk after dark","trigger":"dark","target":2}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	d := decode[quest.Definition](t, resp)
	if d.ID != 8 || d.Trigger != trigger.Dark {
		t.Errorf("definition = %+v", d)
	}

	resp = f.do(t, http.MethodPost, "/api/quests", `{"name":"x","description":"y","trigger":"lava","target":1}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown trigger status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/api/quests", "")
	list := decode[map[string][]quest.Definition](t, resp)
	if len(list["quests"]) != len(quest.DefaultDefinitions)+1 {
		t.Errorf("catalog size = %d", len(list["quests"]))
	}
}

func TestSensorsReportsTriggers(t *testing.T) {
	f := newAPIFixture(t)
	f.env.Set(sensor.Environment{Temperature: 10, Humidity: 50, Pressure: 1000, VOC: 700})
	if err := f.sampler.SampleOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp := f.do(t, http.MethodGet, "/api/sensors", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[SensorResponse](t, resp)
	if !body.Triggers[trigger.Cold] {
		t.Errorf("cold not reported at %.1f °C", body.Snapshot.Temperature)
	}
	if !body.Triggers[trigger.HerbalSmoke] || body.Smoke.Class != trigger.ClassHerbal {
		t.Errorf("herbal smoke not reported: %+v", body)
	}
}

func TestVOCLoggingOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/voc-logging/export", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty export status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodPost, "/api/voc-logging/start", `{"label":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty label status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodPost, "/api/voc-logging/start", `{"label":"cigarette"}`)
	status := decode[LoggingStatus](t, resp)
	if !status.Active || status.Label != "cigarette" {
		t.Fatalf("status = %+v", status)
	}
	for range 3 {
		if err := f.sampler.SampleOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	f.do(t, http.MethodPost, "/api/voc-logging/stop", "")

	resp = f.do(t, http.MethodGet, "/api/voc-logging/export", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	if n := resp.Header.Get("X-Sample-Count"); n != "3" {
		t.Errorf("sample count = %q, want 3", n)
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(data), strings.Join(sensor.CSVHeader, ",")) {
		t.Errorf("csv = %q", data)
	}
}

func TestPeersAndStats(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/quests/activate", `{"quest_id": 2}`)

	resp := f.do(t, http.MethodGet, "/api/peers", "")
	peers := decode[map[string][]radio.Peer](t, resp)
	if len(peers["peers"]) != 1 || peers["peers"][0].BadgeID != "badge-2" {
		t.Errorf("peers = %+v", peers)
	}

	resp = f.do(t, http.MethodGet, "/api/history/stats", "")
	body := decode[struct {
		Stats map[string]int `json:"stats"`
	}](t, resp)
	if body.Stats["total_events"] != 1 || body.Stats[string(events.EventTypeQuestActivated)] != 1 {
		t.Errorf("stats = %v", body.Stats)
	}

	resp = f.do(t, http.MethodGet, "/api/history", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("history without store status = %d", resp.StatusCode)
	}
}

func TestHistoryFromSQLite(t *testing.T) {
	db, err := storage.InitSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	repo := storage.NewSQLiteEventRepository(db)
	eventLog := events.NewEventLog(storage.NewEventPersister(repo, time.Second))

	engine := quest.NewEngine(quest.NewBlobGateway(storage.NewSQLiteBlobStore(db)), nil, quest.Options{
		Events:  eventLog,
		BadgeID: "badge-test",
	})
	ctx := context.Background()
	if err := engine.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Activate(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Complete(ctx, 3); err != nil {
		t.Fatal(err)
	}
	eventLog.Wait()

	api := NewAPI(APIConfig{
		BadgeID: "badge-test",
		Quests:  engine,
		History: storage.NewHistory(repo),
		Events:  eventLog,
		Logger:  logger.Discard(),
	})
	rec := httptest.NewRecorder()
	api.HandleHistory(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var body HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Tally.Activated != 1 || body.Tally.Completed != 1 || len(body.Entries) != 2 {
		t.Errorf("history = %+v", body)
	}

	rec = httptest.NewRecorder()
	api.HandleHistory(rec, httptest.NewRequest(http.MethodGet, "/api/history?since=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d", rec.Code)
	}

	filters := []struct {
		query string
		want  int
	}{
		{"quest_id=3", 2},
		{"quest_id=4", 0},
		{"type=QUEST_COMPLETED", 1},
		{"quest_id=3&type=QUEST_ACTIVATED", 1},
		{"quest_id=3&limit=1", 1},
	}
	for _, tt := range filters {
		rec = httptest.NewRecorder()
		api.HandleHistory(rec, httptest.NewRequest(http.MethodGet, "/api/history?"+tt.query, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d: %s", tt.query, rec.Code, rec.Body)
		}
		var filtered HistoryResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &filtered); err != nil {
			t.Fatal(err)
		}
		if len(filtered.Entries) != tt.want {
			t.Errorf("%s: got %d entries, want %d", tt.query, len(filtered.Entries), tt.want)
		}
		for _, e := range filtered.Entries {
			if e.QuestID != 3 {
				t.Errorf("%s: unexpected entry %+v", tt.query, e)
			}
		}
	}

	rec = httptest.NewRecorder()
	api.HandleHistory(rec, httptest.NewRequest(http.MethodGet, "/api/history?quest_id=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad quest_id status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	api.HandleStats(rec, httptest.NewRequest(http.MethodGet, "/api/history/stats?quest_id=3", nil))
	var stats struct {
		QuestID int            `json:"quest_id"`
		Stats   map[string]int `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.QuestID != 3 || stats.Stats["total_events"] != 2 || stats.Stats[string(events.EventTypeQuestCompleted)] != 1 {
		t.Errorf("quest stats = %+v", stats)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t)
	for _, path := range []string{"/api/state", "/api/quests/activate", "/api/reset", "/api/voc-logging/export"} {
		method := http.MethodPut
		resp := f.do(t, method, path, "")
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d", method, path, resp.StatusCode)
		}
	}
}
