package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/starford/slideman/internal/api"
	"github.com/starford/slideman/internal/assembly"
	"github.com/starford/slideman/internal/convert"
	"github.com/starford/slideman/internal/keyword"
	"github.com/starford/slideman/internal/library"
	"github.com/starford/slideman/internal/slidesvc"
	"github.com/starford/slideman/internal/store"
	"github.com/starford/slideman/internal/testutil"
	"github.com/starford/slideman/internal/undo"
)

type testServer struct {
	router http.Handler
	db     *store.DB
	lib    library.Provider
	pool   *convert.Pool
	token  string
}

func newServer(t *testing.T, authEnabled bool, token string) *testServer {
	t.Helper()
	db := testutil.TestDB(t)
	root, lib := testutil.TestLibrary(t)
	pool := convert.NewPool(db, lib, 2, testutil.Logger(), nil)
	svc := slidesvc.NewService(db, lib, pool,
		undo.NewHistory(db, 100),
		keyword.NewMerger(db, 0.34),
		assembly.NewExporter(db, lib))
	return &testServer{
		router: api.NewRouter(svc, authEnabled, token, nil, root),
		db:     db,
		lib:    lib,
		pool:   pool,
		token:  token,
	}
}

// seedDeck writes and converts a fixture presentation, returning its slide ids.
func (s *testServer) seedDeck(t *testing.T, rel string, slides ...testutil.SlideSpec) []int64 {
	t.Helper()
	if err := s.lib.Write(rel, testutil.BuildPresentation(t, slides...)); err != nil {
		t.Fatal(err)
	}
	if err := s.pool.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	f, err := s.db.GetFileByPath(rel)
	if err != nil {
		t.Fatal(err)
	}
	items, _, err := s.db.ListSlides(f.ProjectID, 0, 0, "", "position")
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if it.FileID == f.ID {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func TestProjectLifecycle(t *testing.T) {
	s := newServer(t, false, "")

	w := s.do(t, http.MethodPost, "/projects", map[string]string{"name": "Acme Pitch", "folder": "acme"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", w.Code, w.Body)
	}
	var created struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Folder string `json:"folder"`
	}
	decode(t, w, &created)
	if created.ID == 0 || created.Folder != "acme" {
		t.Fatalf("created = %+v", created)
	}

	// Duplicate folder conflicts.
	w = s.do(t, http.MethodPost, "/projects", map[string]string{"name": "Other", "folder": "acme"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d", w.Code)
	}

	// Missing name is a client error.
	w = s.do(t, http.MethodPost, "/projects", map[string]string{"folder": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty name create = %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/projects/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var detail struct {
		Name  string `json:"name"`
		Files []any  `json:"files"`
	}
	decode(t, w, &detail)
	if detail.Name != "Acme Pitch" || detail.Files == nil {
		t.Errorf("detail = %+v", detail)
	}

	w = s.do(t, http.MethodDelete, "/projects/1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/projects/1", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newServer(t, true, "secret")

	// No credentials.
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}

	// Wrong token.
	req = httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	// Valid token.
	if w := s.do(t, http.MethodGet, "/projects", nil); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestTagUndoRedoFlow(t *testing.T) {
	s := newServer(t, false, "")
	ids := s.seedDeck(t, "acme/q3.pptx", testutil.SlideSpec{Title: "Quarterly Revenue"})

	w := s.do(t, http.MethodPost, "/keywords", map[string]string{"text": "revenue", "kind": "topic"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create keyword = %d: %s", w.Code, w.Body)
	}
	var kw struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &kw)

	tagURL := "/slides/" + itoa(ids[0]) + "/keywords/" + itoa(kw.ID)
	if w := s.do(t, http.MethodPost, tagURL, nil); w.Code != http.StatusNoContent {
		t.Fatalf("tag = %d", w.Code)
	}

	var slide struct {
		Keywords []struct {
			Text string `json:"text"`
		} `json:"keywords"`
	}
	w = s.do(t, http.MethodGet, "/slides/"+itoa(ids[0]), nil)
	decode(t, w, &slide)
	if len(slide.Keywords) != 1 || slide.Keywords[0].Text != "revenue" {
		t.Fatalf("slide keywords = %+v", slide.Keywords)
	}

	if w := s.do(t, http.MethodPost, "/undo", nil); w.Code != http.StatusOK {
		t.Fatalf("undo = %d: %s", w.Code, w.Body)
	}
	w = s.do(t, http.MethodGet, "/slides/"+itoa(ids[0]), nil)
	slide.Keywords = nil
	decode(t, w, &slide)
	if len(slide.Keywords) != 0 {
		t.Errorf("keywords after undo = %+v", slide.Keywords)
	}

	if w := s.do(t, http.MethodPost, "/redo", nil); w.Code != http.StatusOK {
		t.Fatalf("redo = %d", w.Code)
	}
	// Undo the redo, then the stack is empty.
	if w := s.do(t, http.MethodPost, "/undo", nil); w.Code != http.StatusOK {
		t.Fatalf("second undo = %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/undo", nil); w.Code != http.StatusConflict {
		t.Errorf("undo on empty stack = %d, want 409", w.Code)
	}
}

func TestKeywordValidation(t *testing.T) {
	s := newServer(t, false, "")

	w := s.do(t, http.MethodPost, "/keywords", map[string]string{"text": "x", "kind": "banana"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad kind = %d, want 400", w.Code)
	}

	w = s.do(t, http.MethodPost, "/keywords/merge", map[string]int64{"winner_id": 3, "loser_id": 3})
	if w.Code != http.StatusBadRequest {
		t.Errorf("self merge = %d, want 400", w.Code)
	}

	w = s.do(t, http.MethodPut, "/keywords/999", map[string]string{"text": "y"})
	if w.Code != http.StatusNotFound {
		t.Errorf("rename missing = %d, want 404", w.Code)
	}
}

func TestAssemblyByKeywordsAndExport(t *testing.T) {
	s := newServer(t, false, "")
	ids := s.seedDeck(t, "acme/q3.pptx",
		testutil.SlideSpec{Title: "Quarterly Revenue"},
		testutil.SlideSpec{Title: "Team"},
		testutil.SlideSpec{Title: "Outlook"},
	)

	w := s.do(t, http.MethodPost, "/keywords", map[string]string{"text": "finance", "kind": "topic"})
	var kw struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &kw)
	for _, sid := range []int64{ids[0], ids[2]} {
		if w := s.do(t, http.MethodPost, "/slides/"+itoa(sid)+"/keywords/"+itoa(kw.ID), nil); w.Code != http.StatusNoContent {
			t.Fatalf("tag = %d", w.Code)
		}
	}

	proj, err := s.db.GetProjectByFolder("acme")
	if err != nil {
		t.Fatal(err)
	}

	w = s.do(t, http.MethodPost, "/projects/"+itoa(proj.ID)+"/assemblies", map[string]any{
		"name":     "Investor deck",
		"keywords": []string{"finance"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create assembly = %d: %s", w.Code, w.Body)
	}
	var a struct {
		ID       int64   `json:"id"`
		SlideIDs []int64 `json:"slide_ids"`
	}
	decode(t, w, &a)
	if len(a.SlideIDs) != 2 {
		t.Fatalf("assembly slides = %v", a.SlideIDs)
	}

	// Neither slide ids nor keywords is a client error.
	w = s.do(t, http.MethodPost, "/projects/"+itoa(proj.ID)+"/assemblies", map[string]any{"name": "empty"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty assembly body = %d, want 400", w.Code)
	}

	w = s.do(t, http.MethodPut, "/assemblies/"+itoa(a.ID)+"/order", map[string]any{
		"slide_ids": []int64{a.SlideIDs[1], a.SlideIDs[0]},
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("reorder = %d: %s", w.Code, w.Body)
	}

	w = s.do(t, http.MethodPost, "/assemblies/"+itoa(a.ID)+"/export", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("export = %d: %s", w.Code, w.Body)
	}
	var exported struct {
		Path string `json:"path"`
	}
	decode(t, w, &exported)
	if !strings.HasPrefix(exported.Path, assembly.ExportsDir+"/") {
		t.Errorf("export path = %q", exported.Path)
	}
	if _, err := s.lib.Read(exported.Path); err != nil {
		t.Errorf("exported file unreadable: %v", err)
	}
}

func TestSearch(t *testing.T) {
	s := newServer(t, false, "")
	s.seedDeck(t, "acme/q3.pptx",
		testutil.SlideSpec{Title: "Quarterly Revenue"},
		testutil.SlideSpec{Title: "Team"},
	)

	if w := s.do(t, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", w.Code)
	}

	w := s.do(t, http.MethodGet, "/search?q=revenue", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var res struct {
		Results []struct {
			Title string `json:"title"`
		} `json:"results"`
	}
	decode(t, w, &res)
	if len(res.Results) != 1 || res.Results[0].Title != "Quarterly Revenue" {
		t.Errorf("results = %+v", res.Results)
	}
}

func TestListSlidesFilterAndPaging(t *testing.T) {
	s := newServer(t, false, "")
	s.seedDeck(t, "acme/q3.pptx",
		testutil.SlideSpec{Title: "One"},
		testutil.SlideSpec{Title: "Two"},
		testutil.SlideSpec{Title: "Three"},
	)

	proj, err := s.db.GetProjectByFolder("acme")
	if err != nil {
		t.Fatal(err)
	}

	w := s.do(t, http.MethodGet, "/projects/"+itoa(proj.ID)+"/slides?limit=2&offset=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var res struct {
		Slides []struct {
			Title string `json:"title"`
		} `json:"slides"`
		Total int `json:"total"`
	}
	decode(t, w, &res)
	if res.Total != 3 || len(res.Slides) != 2 || res.Slides[0].Title != "Two" {
		t.Errorf("paged list = %+v", res)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
