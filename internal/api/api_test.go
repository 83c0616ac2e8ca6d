package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/starford/xflkit/internal/testutil"
	"github.com/starford/xflkit/internal/workspace"
)

// testEnv opens a workspace in a temp folder and builds a router for it.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*workspace.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithDir(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvWithDir(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*workspace.Service, http.Handler, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "doc")
	svc, err := workspace.Open(dir, testutil.TestDB(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(svc.Close)
	router := NewRouter(svc, authEnabled, authToken, sseHandler, t.TempDir())
	return svc, router, dir
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetItem(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/items", CreateItemRequest{Type: "graphic", Name: "Props/Ball"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/items/Props/Ball", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var it workspace.ItemDetail
	_ = json.Unmarshal(w.Body.Bytes(), &it)
	if it.Name != "Props/Ball" || it.Kind != "symbol" || it.SymbolType != "graphic" {
		t.Errorf("item = %+v", it)
	}

	// Encoded slashes resolve to the same item.
	w = do(t, router, http.MethodGet, "/items/Props%2FBall", nil)
	if w.Code != http.StatusOK {
		t.Errorf("encoded get = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/library", nil)
	var names NamesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &names)
	if !slices.Equal(names.Names, []string{"Props", "Props/Ball"}) {
		t.Errorf("names = %v", names.Names)
	}
}

func TestCreateItem_Errors(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/items", CreateItemRequest{Type: "graphic", Name: "Dup"}); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	cases := []struct {
		name string
		req  CreateItemRequest
		want int
	}{
		{"duplicate", CreateItemRequest{Type: "graphic", Name: "Dup"}, http.StatusConflict},
		{"bad type", CreateItemRequest{Type: "sprite", Name: "X"}, http.StatusBadRequest},
		{"video", CreateItemRequest{Type: "video", Name: "V"}, http.StatusNotImplemented},
		{"missing name", CreateItemRequest{Type: "graphic"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := do(t, router, http.MethodPost, "/items", tc.req); w.Code != tc.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tc.want, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", w.Code)
	}
}

func TestUpdateItem(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/items", CreateItemRequest{Type: "movie clip", Name: "Hero"})

	w := do(t, router, http.MethodPatch, "/items/Hero", UpdateItemRequest{Name: "Villain"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}
	folder := "Cast"
	w = do(t, router, http.MethodPatch, "/items/Villain", UpdateItemRequest{Folder: &folder})
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	var it workspace.ItemDetail
	_ = json.Unmarshal(w.Body.Bytes(), &it)
	if it.Name != "Cast/Villain" {
		t.Errorf("moved name = %q", it.Name)
	}

	if w := do(t, router, http.MethodPatch, "/items/Ghost", UpdateItemRequest{Name: "X"}); w.Code != http.StatusNotFound {
		t.Errorf("rename missing = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPatch, "/items/Cast/Villain", UpdateItemRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty update = %d, want 400", w.Code)
	}
}

func TestDeleteItem(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/items", CreateItemRequest{Type: "graphic", Name: "Bye"})

	w := do(t, router, http.MethodPost, "/timelines/0/layers/0/frames/0/elements", PlaceRequest{Item: "Bye", X: 1, Y: 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("place = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodDelete, "/items/Bye", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
	var resp DeleteItemResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Pruned != 1 {
		t.Errorf("pruned = %d, want 1", resp.Pruned)
	}

	if w := do(t, router, http.MethodGet, "/items/Bye", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodGet, "/timelines/0/layers/0/frames/0", nil)
	var fr workspace.FrameInfo
	_ = json.Unmarshal(w.Body.Bytes(), &fr)
	if len(fr.Elements) != 0 {
		t.Errorf("elements after delete = %+v", fr.Elements)
	}
}

func TestListItems(t *testing.T) {
	_, router := testEnv(t, "")
	for _, name := range []string{"a", "b"} {
		do(t, router, http.MethodPost, "/items", CreateItemRequest{Type: "graphic", Name: name})
	}
	do(t, router, http.MethodPost, "/items", CreateItemRequest{Type: "button", Name: "c"})

	w := do(t, router, http.MethodGet, "/items?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp ItemListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 || len(resp.Items) != 3 {
		t.Errorf("list = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/items?symbol_type=button", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Items[0].Name != "c" {
		t.Errorf("filtered list = %+v", resp)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/items", CreateItemRequest{Type: "graphic", Name: "Uniquetoken"})

	w := do(t, router, http.MethodGet, "/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 {
		t.Errorf("search results = %d, want 1", len(resp.Results))
	}

	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestTimelineEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/timelines/0/layers", CreateLayerRequest{Name: "Top"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add layer = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/timelines/0/frames", FramesRequest{At: 0, Count: 5}); w.Code != http.StatusNoContent {
		t.Fatalf("insert frames = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPost, "/timelines/0/layers/1/keyframes", KeyframesRequest{Start: 2, End: 3})
	var changed ChangedResponse
	_ = json.Unmarshal(w.Body.Bytes(), &changed)
	if w.Code != http.StatusOK || !changed.Changed {
		t.Fatalf("convert = %d, %+v", w.Code, changed)
	}

	w = do(t, router, http.MethodGet, "/timelines/0/layers", nil)
	var layers LayersResponse
	_ = json.Unmarshal(w.Body.Bytes(), &layers)
	if len(layers.Layers) != 2 || !slices.Equal(layers.Layers[1].Keyframes, []int{0, 2, 3}) {
		t.Errorf("layers = %+v", layers.Layers)
	}

	w = do(t, router, http.MethodDelete, "/timelines/0/layers/1/keyframes/2", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &changed)
	if w.Code != http.StatusOK || !changed.Changed {
		t.Errorf("clear = %d, %+v", w.Code, changed)
	}
	if w := do(t, router, http.MethodDelete, "/timelines/0/layers/1/keyframes/0", nil); w.Code != http.StatusConflict {
		t.Errorf("clear first keyframe = %d, want 409", w.Code)
	}

	if w := do(t, router, http.MethodDelete, "/timelines/0/frames?at=0&count=2", nil); w.Code != http.StatusNoContent {
		t.Errorf("remove frames = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/document", nil)
	var sum workspace.Summary
	_ = json.Unmarshal(w.Body.Bytes(), &sum)
	if sum.Timelines[0].Frames != 4 {
		t.Errorf("frames after remove = %d, want 4", sum.Timelines[0].Frames)
	}
}

func TestTimelineEndpoints_Errors(t *testing.T) {
	_, router := testEnv(t, "")
	cases := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/timelines/x/layers", http.StatusBadRequest},
		{http.MethodGet, "/timelines/3/layers", http.StatusBadRequest},
		{http.MethodGet, "/timelines/0/layers/0/frames/99", http.StatusBadRequest},
		{http.MethodGet, "/timelines/0/layers/0/frames/0/elements/0/paths", http.StatusBadRequest},
		{http.MethodDelete, "/timelines/0/frames", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if w := do(t, router, tc.method, tc.target, nil); w.Code != tc.want {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.target, w.Code, tc.want)
		}
	}
	if w := do(t, router, http.MethodPost, "/timelines/0/layers/0/frames/0/elements", PlaceRequest{Item: "nope"}); w.Code != http.StatusNotFound {
		t.Errorf("place missing = %d, want 404", w.Code)
	}
}

func TestShapePaths(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "doc")
	testutil.WriteFile(t, dir, "DOMDocument.xml", `<DOMDocument><timelines><DOMTimeline name="Scene 1"><layers><DOMLayer name="L"><frames>
<DOMFrame index="0"><elements><DOMShape><fills><FillStyle index="1"><SolidColor color="#FF0000"/></FillStyle></fills><edges><Edge fillStyle1="1" edges="!0 0|200 0|200 200"/></edges></DOMShape></elements></DOMFrame>
</frames></DOMLayer></layers></DOMTimeline></timelines></DOMDocument>`)
	svc, err := workspace.Open(dir, testutil.TestDB(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer svc.Close()
	router := NewRouter(svc, false, "", nil, t.TempDir())

	w := do(t, router, http.MethodGet, "/timelines/0/layers/0/frames/0/elements/0/paths", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("paths = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PathsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Paths) != 1 || resp.Paths[0] != "M 0 0 L 10 0 10 10" {
		t.Errorf("paths = %v", resp.Paths)
	}
}

func TestImportEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	srcDir := filepath.Join(t.TempDir(), "src")
	src, err := workspace.Open(srcDir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := src.AddItem(context.Background(), "graphic", "Shared/Logo"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	src.Close()

	w := do(t, router, http.MethodPost, "/import", ImportRequest{Source: srcDir, Name: "Shared/Logo", DryRun: true})
	if w.Code != http.StatusOK {
		t.Fatalf("dry run = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/items/Shared/Logo", nil); w.Code != http.StatusNotFound {
		t.Errorf("dry run imported the item: %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/import", ImportRequest{Source: srcDir, Name: "Shared/Logo"})
	var res workspace.ImportResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if w.Code != http.StatusOK || !slices.Equal(res.Imported, []string{"Shared/Logo"}) {
		t.Fatalf("import = %d, %+v", w.Code, res)
	}
	if w := do(t, router, http.MethodPost, "/import", ImportRequest{Source: srcDir, Name: "Shared/Logo"}); w.Code != http.StatusConflict {
		t.Errorf("second import = %d, want 409", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/import", ImportRequest{Source: srcDir, Name: "Ghost"}); w.Code != http.StatusNotFound {
		t.Errorf("import missing = %d, want 404", w.Code)
	}
}

func TestSave(t *testing.T) {
	_, router, dir := testEnvWithDir(t, false, "", nil)
	if w := do(t, router, http.MethodPost, "/save", nil); w.Code != http.StatusNoContent {
		t.Fatalf("save = %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(dir, "DOMDocument.xml")); err != nil {
		t.Errorf("document not on disk: %v", err)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/document", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed get = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/document", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/document", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithDir(t, true, "secret", sseStub)

	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithDir(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	_, router, _ := testEnvWithDir(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with query token should not 401")
	}

	req = httptest.NewRequest(http.MethodPost, "/save?access_token=tok", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("query token on POST = %d, want 401", w.Code)
	}
}

// Media tests.

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServeMedia(t *testing.T) {
	_, router, dir := testEnvWithDir(t, false, "", nil)

	w := uploadFile(t, router, "face.png", []byte("fake-png-data"), map[string]string{"name": "Art/face.png"})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var it MediaUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &it)
	if it.Name != "Art/face.png" || it.Kind != "bitmap" {
		t.Errorf("item = %+v", it)
	}

	data, err := os.ReadFile(filepath.Join(dir, "LIBRARY", "Art", "face.png"))
	if err != nil {
		t.Fatalf("file not in package: %v", err)
	}
	if string(data) != "fake-png-data" {
		t.Errorf("content mismatch")
	}

	w = do(t, router, http.MethodGet, "/media/Art/face.png", nil)
	if w.Code != http.StatusOK || w.Body.String() != "fake-png-data" {
		t.Errorf("serve = %d, %q", w.Code, w.Body.String())
	}

	if w := uploadFile(t, router, "face.png", []byte("again"), map[string]string{"name": "Art/face.png"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate upload = %d, want 409", w.Code)
	}
	w = uploadFile(t, router, "face.png", []byte("again"), map[string]string{"name": "Art/face.png", "overwrite": "true"})
	if w.Code != http.StatusCreated {
		t.Errorf("overwrite upload = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestServeMedia_Errors(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/items", CreateItemRequest{Type: "graphic", Name: "Sym"})

	if w := do(t, router, http.MethodGet, "/media/nope.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing media = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/media/Sym", nil); w.Code != http.StatusBadRequest {
		t.Errorf("symbol as media = %d, want 400", w.Code)
	}
}

func TestUploadMedia_InvalidFilename(t *testing.T) {
	_, router, dir := testEnvWithDir(t, false, "", nil)
	for _, name := range []string{"notes.txt", "Hero.xml"} {
		if w := uploadFile(t, router, name, []byte("x"), nil); w.Code != http.StatusBadRequest {
			t.Errorf("upload %s = %d, want 400", name, w.Code)
		}
	}
	// multipart headers may clean "../"; verify nothing lands outside.
	w := uploadFile(t, router, "../escape.png", []byte("bad"), nil)
	if w.Code == http.StatusCreated {
		if _, err := os.Stat(filepath.Join(dir, "..", "escape.png")); err == nil {
			t.Error("file escaped package directory")
		}
	}
}

func TestUploadMedia_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithDir(t, true, "secret", nil)

	if w := uploadFile(t, router, "x.png", []byte("data"), nil); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
}

func TestUploadMedia_MissingFileField(t *testing.T) {
	_, router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}
