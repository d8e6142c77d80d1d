package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"research-backend/internal/extract"
	"research-backend/internal/handlers"
	"research-backend/internal/indexer"
	"research-backend/internal/llm"
	"research-backend/internal/notify"
	"research-backend/internal/rag"
	"research-backend/internal/storage"
	"research-backend/internal/vectorstore"
)

// newTestRouter wires the real stack with the hash embedder and a temp data dir.
func newTestRouter(t *testing.T) (http.Handler, *vectorstore.Index) {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.New(filepath.Join(dir, "batches.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	batches := storage.NewBatchRepo(db)

	embedder, err := llm.NewHashEmbedder(384)
	if err != nil {
		t.Fatalf("NewHashEmbedder() error = %v", err)
	}

	index := vectorstore.NewIndex(filepath.Join(dir, "faiss.index"), filepath.Join(dir, "faiss_meta.json"))
	hub := notify.NewHub()
	pipeline := indexer.NewPipeline(index, embedder, extract.NewFileExtractor(), extract.NewWebFetcher(5*time.Second, 10), hub, 800, 150)
	pipeline.SetLedger(batches)

	router := NewRouter(&Deps{
		Index:       index,
		Ingester:    pipeline,
		Engine:      rag.NewEngine(embedder, index),
		Hub:         hub,
		Batches:     batches,
		MaxUploadMB: 4,
	})
	return router, index
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", name)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	_, _ = part.Write([]byte(content))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "GET /status", method: http.MethodGet, path: "/status", wantStatus: http.StatusOK},
		{name: "GET /meta", method: http.MethodGet, path: "/meta", wantStatus: http.StatusOK},
		{name: "GET /batches", method: http.MethodGet, path: "/batches", wantStatus: http.StatusOK},
		{name: "POST /query empty", method: http.MethodPost, path: "/query", body: `{"query":""}`, wantStatus: http.StatusBadRequest},
		{name: "POST /ingest/urls empty", method: http.MethodPost, path: "/ingest/urls", body: `{"urls":[]}`, wantStatus: http.StatusOK},
		{name: "GET /query method not allowed", method: http.MethodGet, path: "/query", wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown route", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := serve(router, req)
			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_IngestQueryMeta(t *testing.T) {
	router, index := newTestRouter(t)

	w := serve(router, uploadRequest(t, "cats.txt", "Cats purr when they are content. Cats sleep most of the day."))
	if w.Code != http.StatusOK {
		t.Fatalf("first ingest status = %d, body %s", w.Code, w.Body.String())
	}
	w = serve(router, uploadRequest(t, "rockets.md", "# Rockets\n\nRockets burn fuel to produce thrust."))
	if w.Code != http.StatusOK {
		t.Fatalf("second ingest status = %d, body %s", w.Code, w.Body.String())
	}
	var ingest handlers.IngestResponse
	_ = json.NewDecoder(w.Body).Decode(&ingest)
	if ingest.Status != "ok" || ingest.Added != 1 {
		t.Errorf("second ingest = %+v, want ok/1", ingest)
	}

	// /meta?n=1 returns the newest chunk only
	w = serve(router, httptest.NewRequest(http.MethodGet, "/meta?n=1", nil))
	var meta handlers.MetaResponse
	if err := json.NewDecoder(w.Body).Decode(&meta); err != nil {
		t.Fatalf("decode /meta: %v", err)
	}
	if meta.Total != index.Len() || len(meta.Items) != 1 {
		t.Fatalf("meta = %+v, want total %d and one item", meta, index.Len())
	}
	if meta.Items[0].Title == nil || *meta.Items[0].Title != "rockets.md" {
		t.Errorf("newest item = %+v, want rockets.md", meta.Items[0])
	}

	w = serve(router, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"Rockets burn fuel to produce thrust.","top_k":1}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d, body %s", w.Code, w.Body.String())
	}
	var query handlers.QueryResponse
	_ = json.NewDecoder(w.Body).Decode(&query)
	if len(query.Answers) != 1 || query.Answers[0].Score == nil {
		t.Fatalf("answers = %+v, want one scored answer", query.Answers)
	}
	if *query.Answers[0].Title != "rockets.md" {
		t.Errorf("top answer = %s, want rockets.md chunk", query.Answers[0].ChunkID)
	}

	w = serve(router, httptest.NewRequest(http.MethodGet, "/batches", nil))
	var batches handlers.BatchesResponse
	_ = json.NewDecoder(w.Body).Decode(&batches)
	if len(batches.Batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(batches.Batches))
	}
	if batches.Batches[0].Kind != storage.KindFiles || batches.Batches[0].Added != 1 {
		t.Errorf("newest batch = %+v", batches.Batches[0])
	}

	w = serve(router, httptest.NewRequest(http.MethodGet, "/status", nil))
	var status handlers.StatusResponse
	_ = json.NewDecoder(w.Body).Decode(&status)
	if !status.Ready || status.Indexed != index.Len() {
		t.Errorf("status = %+v, want ready with %d indexed", status, index.Len())
	}
}

func TestRouter_MiddlewareApplied(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/ingest", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := serve(router, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Error("Router should apply CORS middleware")
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "X-Client-ID") {
		t.Error("CORS should allow the X-Client-ID header")
	}
}

func TestRouter_QueryFindsIngestedText(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, uploadRequest(t, "hello.txt", "Hello world. Second sentence."))
	var ingest handlers.IngestResponse
	_ = json.NewDecoder(w.Body).Decode(&ingest)
	if ingest.Added != 1 {
		t.Fatalf("added = %d, want exactly one chunk", ingest.Added)
	}

	w = serve(router, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"hello","top_k":1}`)))
	var query handlers.QueryResponse
	_ = json.NewDecoder(w.Body).Decode(&query)
	if len(query.Answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(query.Answers))
	}
	if query.Answers[0].Text != "Hello world. Second sentence." || *query.Answers[0].Score <= 0 {
		t.Errorf("answer = %q score %v, want the ingested chunk with positive score", query.Answers[0].Text, *query.Answers[0].Score)
	}
}

func TestRouter_IngestURLsReportsUnreachable(t *testing.T) {
	router, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	page := httptest.NewServer(htmlPage(`<html><body><p>Solar panels convert sunlight into electricity.</p></body></html>`))
	defer page.Close()
	unreachable := "http://127.0.0.1:1/missing"

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/dana", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// The hub registers the channel after the upgrade completes
	var events []indexer.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var e indexer.Event
			if err := conn.ReadJSON(&e); err != nil {
				return
			}
			events = append(events, e)
			if e.Event == indexer.EventIngestDone {
				return
			}
		}
	}()
	time.Sleep(50 * time.Millisecond)

	body := `{"urls":["` + unreachable + `","` + page.URL + `"]}`
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/ingest/urls", strings.NewReader(body))
	req.Header.Set("X-Client-ID", "dana")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /ingest/urls error = %v", err)
	}
	defer resp.Body.Close()

	var ingest handlers.IngestResponse
	_ = json.NewDecoder(resp.Body).Decode(&ingest)
	if resp.StatusCode != http.StatusOK || ingest.Added != 1 {
		t.Fatalf("status %d added %d, want 200 and 1", resp.StatusCode, ingest.Added)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("did not receive ingest_done")
	}

	var sawError bool
	for _, e := range events {
		if e.Event == indexer.EventURLError && e.URL == unreachable {
			sawError = true
		}
	}
	if !sawError {
		t.Errorf("events = %+v, want url_error for %s", events, unreachable)
	}
}

func htmlPage(html string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	})
}
