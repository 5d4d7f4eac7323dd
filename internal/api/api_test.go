package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/starford/mediafold/internal/noteservice"
	"github.com/starford/mediafold/internal/storage"
	"github.com/starford/mediafold/internal/testutil"
)

var pngData = "data:image/png;base64," + strings.Repeat("iVBORw0KGgo", 20)

// testEnv sets up a temp vault, SQLite index, engine, service and router.
// A non-empty authToken enables token mode.
func testEnv(t *testing.T, authToken string, opts ...noteservice.Option) (http.Handler, *storage.FS) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	eng, blobs := testutil.TestEngine(t, 0)
	svc := noteservice.New(store, db, eng, blobs, opts...)
	return NewRouter(svc, authToken != "", authToken, nil), store
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetNote(t *testing.T) {
	router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Path: "hello.md", Content: "# Hello\nWorld"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/notes/hello.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	note := decodeBody[NoteDetail](t, w)
	if note.Path != "hello.md" || note.Title != "Hello" {
		t.Errorf("note = %+v", note)
	}
	if w.Header().Get("ETag") != `"`+note.Checksum+`"` {
		t.Errorf("etag = %q", w.Header().Get("ETag"))
	}
}

func TestCreateValidation(t *testing.T) {
	router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "x.md"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing content = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Content") {
		t.Errorf("body = %s", w.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestCreateDuplicate(t *testing.T) {
	router, _ := testEnv(t, "")
	body := CreateNoteRequest{Path: "dup.md", Content: "a"}

	if w := doJSON(t, router, http.MethodPost, "/notes", body); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodPost, "/notes", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestEditAndSaveRoundTrip(t *testing.T) {
	router, store := testEnv(t, "")
	canonical := "# Pics\n![cat](" + pngData + ")\n"
	if err := store.Write("pics.md", []byte(canonical)); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, router, http.MethodGet, "/edit/pics.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("edit = %d, body = %s", w.Code, w.Body.String())
	}
	view := decodeBody[EditView](t, w)
	if strings.Contains(view.Buffer, "base64") {
		t.Fatalf("buffer not collapsed: %q", view.Buffer)
	}
	if !strings.Contains(view.Buffer, `<image data-id="K1" data-display="...0KGgo">cat</image>`) {
		t.Errorf("buffer = %q", view.Buffer)
	}

	edited := view.Buffer + "more\n"
	w = doJSON(t, router, http.MethodPut, "/notes/pics.md", SaveNoteRequest{Buffer: edited}, "If-Match", `"`+view.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d, body = %s", w.Code, w.Body.String())
	}
	note := decodeBody[NoteDetail](t, w)
	if note.Content != canonical+"more\n" {
		t.Errorf("content = %q", note.Content)
	}

	// Stale checksum is a conflict.
	w = doJSON(t, router, http.MethodPut, "/notes/pics.md", SaveNoteRequest{Buffer: edited}, "If-Match", view.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("stale save = %d, want 409", w.Code)
	}
}

func TestSaveMissingWithIfMatch(t *testing.T) {
	router, _ := testEnv(t, "")
	w := doJSON(t, router, http.MethodPut, "/notes/nope.md", SaveNoteRequest{Buffer: "x"}, "If-Match", "abc")
	if w.Code != http.StatusNotFound {
		t.Errorf("save missing = %d, want 404", w.Code)
	}

	w = doJSON(t, router, http.MethodPut, "/notes/new.md", SaveNoteRequest{Buffer: "# New"})
	if w.Code != http.StatusOK {
		t.Errorf("save without If-Match = %d, want 200", w.Code)
	}
}

func TestSaveDraftWithoutAutosave(t *testing.T) {
	router, store := testEnv(t, "")
	w := doJSON(t, router, http.MethodPost, "/drafts/d.md", DraftRequest{Buffer: "# Draft"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("draft = %d", w.Code)
	}
	data, err := store.Read("d.md")
	if err != nil || string(data) != "# Draft" {
		t.Errorf("disk = %q, %v", data, err)
	}
}

func TestDeleteNote(t *testing.T) {
	router, _ := testEnv(t, "")
	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Path: "del.md", Content: "bye"})

	if w := doJSON(t, router, http.MethodDelete, "/notes/del.md", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/notes/del.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := doJSON(t, router, http.MethodDelete, "/notes/del.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListAndSearch(t *testing.T) {
	router, _ := testEnv(t, "")
	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Path: "a.md", Content: "# Alpha #pics\n![sunset](" + pngData + ")"})
	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Path: "b.md", Content: "# Beta"})

	w := doJSON(t, router, http.MethodGet, "/notes?limit=10&tag=pics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	list := decodeBody[NoteListResponse](t, w)
	if list.Total != 1 || list.Notes[0].Path != "a.md" || list.Notes[0].MediaCount != 1 {
		t.Errorf("list = %+v", list)
	}

	w = doJSON(t, router, http.MethodGet, "/search?q=sunset", nil)
	res := decodeBody[SearchResponse](t, w)
	if len(res.Results) != 1 || res.Results[0].Path != "a.md" {
		t.Errorf("search = %+v", res)
	}

	if w := doJSON(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestCollapseExpandPreview(t *testing.T) {
	router, _ := testEnv(t, "")
	text := "a ![x](" + pngData + ") b"

	w := doJSON(t, router, http.MethodPost, "/documents/collapse", DocumentRequest{Text: text})
	col := decodeBody[DocumentResponse](t, w)
	if col.Text != `a <image data-id="K1" data-display="...0KGgo">x</image> b` || col.Warning != "" {
		t.Fatalf("collapse = %+v", col)
	}

	w = doJSON(t, router, http.MethodPost, "/documents/expand", DocumentRequest{Text: col.Text})
	if exp := decodeBody[DocumentResponse](t, w); exp.Text != text {
		t.Errorf("expand = %q", exp.Text)
	}

	w = doJSON(t, router, http.MethodPost, "/documents/preview", DocumentRequest{Text: col.Text})
	if pv := decodeBody[PreviewResponse](t, w); !strings.Contains(pv.HTML, `<img src="`+pngData+`"`) {
		t.Errorf("preview = %q", pv.HTML)
	}
}

func TestToggleUsesCodePoints(t *testing.T) {
	router, _ := testEnv(t, "")
	text := "图片 ![x](" + pngData + ")"

	w := doJSON(t, router, http.MethodPost, "/documents/toggle", ToggleRequest{Text: text, Cursor: 4})
	if w.Code != http.StatusOK {
		t.Fatalf("toggle = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody[ToggleResponse](t, w)
	if !res.Changed || res.Action != "collapse" || res.Cursor != 3 || res.Start != 3 {
		t.Fatalf("toggle = %+v", res)
	}

	w = doJSON(t, router, http.MethodPost, "/documents/toggle", ToggleRequest{Text: res.Text, Cursor: res.Start})
	back := decodeBody[ToggleResponse](t, w)
	if back.Text != text || back.Action != "expand" {
		t.Errorf("toggle back = %+v", back)
	}

	w = doJSON(t, router, http.MethodPost, "/documents/toggle", ToggleRequest{Text: "plain", Cursor: 2})
	if noop := decodeBody[ToggleResponse](t, w); noop.Changed || noop.Text != "plain" {
		t.Errorf("noop = %+v", noop)
	}

	if w := doJSON(t, router, http.MethodPost, "/documents/toggle", ToggleRequest{Text: "x", Cursor: -1}); w.Code != http.StatusBadRequest {
		t.Errorf("negative cursor = %d, want 400", w.Code)
	}
}

// Auth tests.

func TestAuthMiddleware(t *testing.T) {
	router, _ := testEnv(t, "secret")

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer secret", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"scheme", "Basic secret", http.StatusUnauthorized},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/notes", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != c.want {
				t.Errorf("status = %d, want %d", w.Code, c.want)
			}
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router, _ := testEnv(t, "")
	if w := doJSON(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	eng, blobs := testutil.TestEngine(t, 0)
	svc := noteservice.New(store, db, eng, blobs)

	// Writes headers and blocks until the request ends.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return NewRouter(svc, authEnabled, token, sseHandler)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

// Attachment tests.

func uploadFile(t *testing.T, router http.Handler, filename, mimeType, mode string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if mode != "" {
		if err := mw.WriteField("mode", mode); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndReadBlob(t *testing.T) {
	router, _ := testEnv(t, "")

	w := uploadFile(t, router, "photo.png", "image/png", "image", []byte("PNGDATA"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	att := decodeBody[Attachment](t, w)
	if att.Kind != "image" || !strings.HasPrefix(att.Tag, "<image ") || att.Key == "" {
		t.Fatalf("attachment = %+v", att)
	}

	w = doJSON(t, router, http.MethodGet, "/blobs/"+att.Key, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("blob = %d", w.Code)
	}
	blob := decodeBody[BlobResponse](t, w)
	if blob.Data != "data:image/png;base64,UE5HREFUQQ==" || blob.Name != "photo.png" {
		t.Errorf("blob = %+v", blob)
	}

	if w := doJSON(t, router, http.MethodDelete, "/blobs/"+att.Key, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete unreferenced = %d, want 204", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/blobs/"+att.Key, nil); w.Code != http.StatusNotFound {
		t.Errorf("blob after delete = %d, want 404", w.Code)
	}
}

func TestUploadFileModeClassifies(t *testing.T) {
	router, _ := testEnv(t, "")
	w := uploadFile(t, router, "song.mp3", "audio/mpeg", "", []byte("ID3"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d", w.Code)
	}
	att := decodeBody[Attachment](t, w)
	if att.Kind != "audio" || !strings.HasPrefix(att.Tag, "<file ") {
		t.Errorf("attachment = %+v", att)
	}
}

func TestUploadErrors(t *testing.T) {
	router, _ := testEnv(t, "", noteservice.WithMaxUpload(4))

	if w := uploadFile(t, router, "big.bin", "application/octet-stream", "", []byte("123456")); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("too large = %d, want 413", w.Code)
	}
	if w := uploadFile(t, router, "x.txt", "text/plain", "weird", []byte("x")); w.Code != http.StatusBadRequest {
		t.Errorf("bad mode = %d, want 400", w.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file field = %d, want 400", w.Code)
	}
}

func TestBlobKeyValidation(t *testing.T) {
	router, _ := testEnv(t, "")
	if w := doJSON(t, router, http.MethodGet, "/blobs/..%2Fetc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad key = %d, want 400", w.Code)
	}
}

func TestUploadQuotaExceeded(t *testing.T) {
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	eng, blobs := testutil.TestEngine(t, 8)
	router := NewRouter(noteservice.New(store, db, eng, blobs), false, "", nil)

	w := uploadFile(t, router, "a.txt", "text/plain", "", []byte("hello world"))
	if w.Code != http.StatusInsufficientStorage {
		t.Errorf("quota = %d, want 507", w.Code)
	}
}
