package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cognivia/ideaflow/internal/chat"
	"github.com/cognivia/ideaflow/internal/config"
	"github.com/cognivia/ideaflow/internal/scoring"
	"github.com/cognivia/ideaflow/internal/settings"
	"github.com/cognivia/ideaflow/internal/store"
)

type fakeStreamer struct {
	tokens     []string
	err        error
	gotSession string
	gotMessage string
}

func (f *fakeStreamer) Stream(_ context.Context, sessionID, message string, sink chat.Sink) error {
	f.gotSession = sessionID
	f.gotMessage = message
	if f.err != nil {
		return f.err
	}
	for _, tok := range f.tokens {
		if err := sink(tok); err != nil {
			return nil
		}
	}
	return nil
}

type fakeTranscripts struct {
	docs             map[string]*store.SessionDoc
	finalIdeaUnacked bool
}

func newFakeTranscripts() *fakeTranscripts {
	return &fakeTranscripts{docs: make(map[string]*store.SessionDoc)}
}

func (f *fakeTranscripts) Load(_ context.Context, sessionID string) ([]chat.Message, error) {
	if doc, ok := f.docs[sessionID]; ok {
		return doc.Messages, nil
	}
	return nil, nil
}

func (f *fakeTranscripts) Get(_ context.Context, sessionID string) (*store.SessionDoc, error) {
	return f.docs[sessionID], nil
}

func (f *fakeTranscripts) SetFinalIdea(_ context.Context, sessionID, idea string) (bool, error) {
	if f.finalIdeaUnacked {
		return false, nil
	}
	doc, ok := f.docs[sessionID]
	if !ok {
		doc = &store.SessionDoc{SessionID: sessionID}
		f.docs[sessionID] = doc
	}
	doc.FinalIdea = idea
	return true, nil
}

func (f *fakeTranscripts) Delete(_ context.Context, sessionID string) (bool, error) {
	_, ok := f.docs[sessionID]
	delete(f.docs, sessionID)
	return ok, nil
}

func (f *fakeTranscripts) All(_ context.Context) ([]store.SessionDoc, error) {
	out := make([]store.SessionDoc, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

type fakeAnalyses struct {
	results map[string]scoring.Result
}

func newFakeAnalyses() *fakeAnalyses {
	return &fakeAnalyses{results: make(map[string]scoring.Result)}
}

func (f *fakeAnalyses) Upsert(_ context.Context, res scoring.Result) error {
	f.results[res.SessionID] = res
	return nil
}

func (f *fakeAnalyses) Get(_ context.Context, sessionID string) (*scoring.Result, error) {
	if res, ok := f.results[sessionID]; ok {
		return &res, nil
	}
	return nil, nil
}

func (f *fakeAnalyses) List(_ context.Context, _, _ time.Time) ([]scoring.Result, error) {
	out := make([]scoring.Result, 0, len(f.results))
	for _, res := range f.results {
		out = append(out, res)
	}
	return out, nil
}

func (f *fakeAnalyses) Delete(_ context.Context, sessionID string) (bool, error) {
	_, ok := f.results[sessionID]
	delete(f.results, sessionID)
	return ok, nil
}

type fakeScorer struct {
	result scoring.Result
	themes []scoring.ThemeCount
	calls  int
}

func (f *fakeScorer) Analyze(_ context.Context, sessionID string, _ []chat.Message, finalIdea string) scoring.Result {
	f.calls++
	res := f.result
	res.SessionID = sessionID
	res.FinalIdea = finalIdea
	return res
}

func (f *fakeScorer) ExtractThemes(_ context.Context, _ []string) []scoring.ThemeCount {
	return f.themes
}

type fakeDashboard struct {
	stats store.Statistics
}

func (f *fakeDashboard) Statistics(_ context.Context) (store.Statistics, error) {
	return f.stats, nil
}

func (f *fakeDashboard) Averages(_ context.Context) (store.Averages, error) {
	return store.Averages{Originality: 60}, nil
}

func (f *fakeDashboard) OriginalityBuckets(_ context.Context) ([]store.ScoreBucket, error) {
	return []store.ScoreBucket{{Low: 40, Count: 2}}, nil
}

func (f *fakeDashboard) FinalIdeas(_ context.Context) ([]string, error) {
	return []string{"a space game"}, nil
}

type memSettingsStore struct {
	cur *settings.Settings
}

func (m *memSettingsStore) Get(_ context.Context) (*settings.Settings, error) {
	return m.cur, nil
}

func (m *memSettingsStore) Upsert(_ context.Context, s settings.Settings) error {
	m.cur = &s
	return nil
}

type testApp struct {
	app         *App
	streamer    *fakeStreamer
	transcripts *fakeTranscripts
	analyses    *fakeAnalyses
	scorer      *fakeScorer
}

func newTestApp() *testApp {
	streamer := &fakeStreamer{}
	transcripts := newFakeTranscripts()
	analyses := newFakeAnalyses()
	scorer := &fakeScorer{}
	cache := settings.NewCache(&memSettingsStore{})
	buffers := chat.NewBufferManager(0)

	app := New(config.DefaultConfig(), streamer, transcripts, analyses, scorer, &fakeDashboard{}, cache, buffers)
	return &testApp{
		app:         app,
		streamer:    streamer,
		transcripts: transcripts,
		analyses:    analyses,
		scorer:      scorer,
	}
}

func (ta *testApp) do(t *testing.T, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ta.app.Routes().ServeHTTP(rec, req)
	return rec
}

func TestChatStream_RelaysTokens(t *testing.T) {
	ta := newTestApp()
	ta.streamer.tokens = []string{"Hello", " ", "there"}

	rec := ta.do(t, http.MethodPost, "/chat_stream", `{"message":"hi"}`,
		map[string]string{sessionIDHeader: "sess-1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "Hello there" {
		t.Errorf("body = %q, want %q", got, "Hello there")
	}
	if ta.streamer.gotSession != "sess-1" || ta.streamer.gotMessage != "hi" {
		t.Errorf("pipeline got (%q, %q)", ta.streamer.gotSession, ta.streamer.gotMessage)
	}
}

func TestChatStream_MissingSessionHeader(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodPost, "/chat_stream", `{"message":"hi"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatStream_EmptyMessage(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodPost, "/chat_stream", `{"message":"  "}`,
		map[string]string{sessionIDHeader: "sess-1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatStream_ConcurrentStreamConflict(t *testing.T) {
	ta := newTestApp()
	ta.streamer.err = chat.ErrStreamInFlight

	rec := ta.do(t, http.MethodPost, "/chat_stream", `{"message":"hi"}`,
		map[string]string{sessionIDHeader: "sess-1"})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestConversation(t *testing.T) {
	ta := newTestApp()
	ta.transcripts.docs["sess-1"] = &store.SessionDoc{
		SessionID: "sess-1",
		Messages: []chat.Message{
			chat.NewMessage(chat.RoleUser, "hi", time.Now()),
		},
		FinalIdea: "an idea",
	}

	rec := ta.do(t, http.MethodGet, "/conversation?session_id=sess-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		History []chat.Message `json:"conversation_history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.History) != 1 || body.History[0].Content != "hi" {
		t.Errorf("unexpected conversation_history: %+v", body.History)
	}

	rec = ta.do(t, http.MethodGet, "/conversation?session_id=nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}
}

func TestAddFinalIdea(t *testing.T) {
	ta := newTestApp()
	ta.transcripts.docs["sess-1"] = &store.SessionDoc{SessionID: "sess-1"}

	rec := ta.do(t, http.MethodPost, "/add-finalIdea?session_id=sess-1", `{"idea":"a space game"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ta.transcripts.docs["sess-1"].FinalIdea != "a space game" {
		t.Errorf("final idea not recorded: %+v", ta.transcripts.docs["sess-1"])
	}
}

func TestAddFinalIdea_CreatesSessionDocument(t *testing.T) {
	ta := newTestApp()

	rec := ta.do(t, http.MethodPost, "/add-finalIdea?session_id=fresh", `{"idea":"a solar kiln"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	doc, ok := ta.transcripts.docs["fresh"]
	if !ok {
		t.Fatal("session document was not created")
	}
	if doc.FinalIdea != "a solar kiln" {
		t.Errorf("final idea = %q, want %q", doc.FinalIdea, "a solar kiln")
	}
}

func TestAddFinalIdea_UnacknowledgedWrite(t *testing.T) {
	ta := newTestApp()
	ta.transcripts.finalIdeaUnacked = true

	rec := ta.do(t, http.MethodPost, "/add-finalIdea?session_id=sess-1", `{"idea":"x"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unacknowledged status = %d, want 400", rec.Code)
	}
}

func TestAnalyze(t *testing.T) {
	ta := newTestApp()
	ta.transcripts.docs["sess-1"] = &store.SessionDoc{
		SessionID: "sess-1",
		Messages:  []chat.Message{chat.NewMessage(chat.RoleUser, "hi", time.Now())},
		FinalIdea: "an idea",
	}
	ta.scorer.result = scoring.Result{AnalysisID: "a-1", OriginalityScore: 70}

	rec := ta.do(t, http.MethodPost, "/analyze", `{"session_id":"sess-1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	stored, ok := ta.analyses.results["sess-1"]
	if !ok {
		t.Fatal("analysis was not upserted")
	}
	if stored.OriginalityScore != 70 || stored.FinalIdea != "an idea" {
		t.Errorf("stored analysis: %+v", stored)
	}

	// The endpoint acknowledges; the record itself is served elsewhere.
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["result"]; ok {
		t.Error("response should not embed the analysis record")
	}
	if string(body["acknowledged"]) != "true" {
		t.Errorf("acknowledged = %s, want true", body["acknowledged"])
	}

	rec = ta.do(t, http.MethodPost, "/analyze", `{"session_id":"nope"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}
}

func TestAnalyze_SessionIDFromQueryFallback(t *testing.T) {
	ta := newTestApp()
	ta.transcripts.docs["sess-1"] = &store.SessionDoc{SessionID: "sess-1", FinalIdea: "idea"}

	rec := ta.do(t, http.MethodPost, "/analyze?session_id=sess-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := ta.analyses.results["sess-1"]; !ok {
		t.Error("analysis was not upserted")
	}
}

func TestAnalyze_ReplacesPriorResult(t *testing.T) {
	ta := newTestApp()
	ta.transcripts.docs["sess-1"] = &store.SessionDoc{SessionID: "sess-1", FinalIdea: "idea"}
	ta.analyses.results["sess-1"] = scoring.Result{SessionID: "sess-1", OriginalityScore: 10}
	ta.scorer.result = scoring.Result{OriginalityScore: 90}

	rec := ta.do(t, http.MethodPost, "/analyze?session_id=sess-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(ta.analyses.results) != 1 {
		t.Fatalf("result count = %d, want 1", len(ta.analyses.results))
	}
	if ta.analyses.results["sess-1"].OriginalityScore != 90 {
		t.Errorf("prior result was not replaced: %+v", ta.analyses.results["sess-1"])
	}
}

func TestConfigEndpoints(t *testing.T) {
	ta := newTestApp()

	rec := ta.do(t, http.MethodGet, "/config", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status before first write = %d, want 404", rec.Code)
	}

	body := `{"tone":"Friendly","genderTone":"Male","textSize":"Short","messageValue":15,"durationValue":25,"intervalValue":{"min":100,"max":300}}`
	rec = ta.do(t, http.MethodPut, "/config", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, want 200", rec.Code)
	}

	rec = ta.do(t, http.MethodGet, "/config", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status after write = %d, want 200", rec.Code)
	}
	var got settings.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Tone != "Friendly" || got.Interval.Max != 300 {
		t.Errorf("unexpected settings: %+v", got)
	}
}

func TestDeleteAnalysis(t *testing.T) {
	ta := newTestApp()
	ta.analyses.results["sess-1"] = scoring.Result{SessionID: "sess-1"}

	rec := ta.do(t, http.MethodDelete, "/analysis/sess-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(ta.analyses.results) != 0 {
		t.Error("analysis was not deleted")
	}

	rec = ta.do(t, http.MethodDelete, "/analysis/sess-1", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestListAnalyses_BadDate(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodGet, "/analysis?start_date=March+1", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDiagrams(t *testing.T) {
	ta := newTestApp()
	ta.scorer.themes = []scoring.ThemeCount{{Theme: "space", Count: 0.4}}

	rec := ta.do(t, http.MethodGet, "/diagrams", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Averages store.Averages       `json:"averages"`
		Buckets  []store.ScoreBucket  `json:"originality_buckets"`
		Themes   []scoring.ThemeCount `json:"themes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Averages.Originality != 60 {
		t.Errorf("averages = %+v", body.Averages)
	}
	if len(body.Themes) != 1 || body.Themes[0].Theme != "space" {
		t.Errorf("themes = %+v", body.Themes)
	}
}

func TestDatas(t *testing.T) {
	ta := newTestApp()
	ta.transcripts.docs["sess-1"] = &store.SessionDoc{
		SessionID: "sess-1",
		Messages:  []chat.Message{chat.NewMessage(chat.RoleUser, "hi", time.Now())},
		FinalIdea: "idea",
	}
	ta.analyses.results["sess-1"] = scoring.Result{SessionID: "sess-1"}

	rec := ta.do(t, http.MethodGet, "/datas", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var rows []sessionRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("row count = %d, want 1", len(rows))
	}
	if rows[0].MessageCount != 1 || !rows[0].Analyzed {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}

func TestUser(t *testing.T) {
	ta := newTestApp()
	ta.transcripts.docs["sess-1"] = &store.SessionDoc{SessionID: "sess-1"}

	rec := ta.do(t, http.MethodGet, "/user?id_session=sess-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = ta.do(t, http.MethodGet, "/user?id_session=nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	ta := newTestApp()
	ta.transcripts.docs["sess-1"] = &store.SessionDoc{SessionID: "sess-1"}
	ta.analyses.results["sess-1"] = scoring.Result{SessionID: "sess-1"}

	rec := ta.do(t, http.MethodDelete, "/user/sess-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(ta.transcripts.docs) != 0 || len(ta.analyses.results) != 0 {
		t.Error("transcript and analysis should both be gone")
	}

	rec = ta.do(t, http.MethodDelete, "/user/sess-1", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestDownloadAll(t *testing.T) {
	ta := newTestApp()
	ta.transcripts.docs["sess-1"] = &store.SessionDoc{SessionID: "sess-1"}
	ta.analyses.results["sess-1"] = scoring.Result{SessionID: "sess-1"}

	rec := ta.do(t, http.MethodPost, "/download/all", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	var body struct {
		Chats    []store.SessionDoc `json:"chats"`
		Analyses []scoring.Result   `json:"analyses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Chats) != 1 || len(body.Analyses) != 1 {
		t.Errorf("export sizes: %d chats, %d analyses", len(body.Chats), len(body.Analyses))
	}
}
