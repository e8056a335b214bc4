package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"chatdb/pkg/auth"
	"chatdb/pkg/feed"
	"chatdb/pkg/ingest"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
)

// testRouter wires the handlers the way internal/app does, with a stub
// middleware injecting the identity from test headers.
func testRouter(t *testing.T, q *ingest.Queue) http.Handler {
	t.Helper()
	if err := store.Open(filepath.Join(t.TempDir(), "store")); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	RegisterMessages(v1)
	RegisterReads(v1, q)
	RegisterFeed(v1, feed.New(50), q)

	return http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		if uid := rq.Header.Get("X-Test-User"); uid != "" {
			rq = rq.WithContext(auth.WithIdentity(rq.Context(), auth.Identity{UserID: uid}))
		}
		r.ServeHTTP(w, rq)
	})
}

func postJSON(t *testing.T, h http.Handler, user, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, h http.Handler, user, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec
}

func TestCreateAndListMessages(t *testing.T) {
	h := testRouter(t, ingest.NewQueue(16))

	rec := postJSON(t, h, "alice", "/v1/messages", map[string]string{"text": "hello"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created models.Message
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.SenderID != "alice" || created.Type != models.TypeText {
		t.Fatalf("unexpected message: %+v", created)
	}

	var listed struct {
		Messages []models.Message `json:"messages"`
	}
	rec = getJSON(t, h, "alice", "/v1/messages", &listed)
	if rec.Code != http.StatusOK || len(listed.Messages) != 1 {
		t.Fatalf("list: status %d, %d messages", rec.Code, len(listed.Messages))
	}
	if listed.Messages[0].ID != created.ID {
		t.Fatalf("listed %s, want %s", listed.Messages[0].ID, created.ID)
	}
}

func TestCreateMessageUnauthenticated(t *testing.T) {
	h := testRouter(t, ingest.NewQueue(16))
	rec := postJSON(t, h, "", "/v1/messages", map[string]string{"text": "hello"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateMessageValidation(t *testing.T) {
	h := testRouter(t, ingest.NewQueue(16))

	// empty body fails store-side content validation
	rec := postJSON(t, h, "alice", "/v1/messages", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty: status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, h, "alice", "/v1/messages", map[string]string{
		"text":          "hi",
		"thumbnail_url": "not a uri",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad uri: status = %d, want 400", rec.Code)
	}
}

func TestGetMessageAndReceipts(t *testing.T) {
	h := testRouter(t, ingest.NewQueue(16))

	rec := postJSON(t, h, "alice", "/v1/messages", map[string]string{"text": "hello"})
	var created models.Message
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	rec = postJSON(t, h, "bob", "/v1/reads", map[string]any{"message_ids": []string{created.ID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: status = %d, body %s", rec.Code, rec.Body.String())
	}

	var summary struct {
		ReadBy          map[string]int64 `json:"read_by"`
		OthersReadCount int              `json:"others_read_count"`
		ReadByOthers    bool             `json:"read_by_others"`
	}
	rec = getJSON(t, h, "alice", "/v1/messages/"+created.ID+"/receipts", &summary)
	if rec.Code != http.StatusOK {
		t.Fatalf("receipts: status = %d", rec.Code)
	}
	if summary.OthersReadCount != 1 || !summary.ReadByOthers {
		t.Fatalf("sender should see one reader: %+v", summary)
	}
	if _, ok := summary.ReadBy["bob"]; !ok {
		t.Fatalf("bob missing from read_by: %v", summary.ReadBy)
	}

	// bob's own view excludes his receipt
	rec = getJSON(t, h, "bob", "/v1/messages/"+created.ID+"/receipts", &summary)
	if summary.OthersReadCount != 0 || summary.ReadByOthers {
		t.Fatalf("reader view should exclude own receipt: %+v", summary)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	h := testRouter(t, ingest.NewQueue(16))
	rec := getJSON(t, h, "alice", "/v1/messages/m-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestReadsTriggerQueues(t *testing.T) {
	q := ingest.NewQueue(16)
	h := testRouter(t, q)

	rec := postJSON(t, h, "bob", "/v1/reads", map[string]any{"trigger": "foreground"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if q.Len() != 1 {
		t.Fatalf("queue depth = %d, want 1", q.Len())
	}
	it := <-q.Out()
	if it.Op.UserID != "bob" || it.Op.Trigger != ingest.TriggerForeground {
		t.Fatalf("unexpected op: %+v", it.Op)
	}
	it.Done()
}

func TestReadsRejectsEmpty(t *testing.T) {
	h := testRouter(t, ingest.NewQueue(16))

	rec := postJSON(t, h, "bob", "/v1/reads", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	rec = postJSON(t, h, "bob", "/v1/reads", map[string]any{"trigger": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad trigger: status = %d, want 400", rec.Code)
	}
	rec = postJSON(t, h, "", "/v1/reads", map[string]any{"trigger": "foreground"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d, want 401", rec.Code)
	}
}
