package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/xflkit/internal/workspace"
)

// Handler holds API route handlers.
type Handler struct {
	svc *workspace.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *workspace.Service) *Handler {
	return &Handler{svc: svc}
}

// itemName extracts the qualified item name from the URL (everything after
// the route prefix). Supports encoded slashes from OpenAPI clients
// (e.g. Props%2FBall).
func itemName(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// intParams reads the named integer URL parameters in order.
func intParams(r *http.Request, names ...string) ([]int, bool) {
	out := make([]int, len(names))
	for i, n := range names {
		v, err := strconv.Atoi(chi.URLParam(r, n))
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// GetDocument handles GET /api/document.
//
//	@Summary		Describe the open document
//	@Tags			document
//	@Produce		json
//	@Success		200	{object}	workspace.Summary
//	@Security		BearerAuth
//	@Router			/document [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Summary(r.Context()))
}

// Save handles POST /api/save.
//
//	@Summary		Write the document back to its folder
//	@Tags			document
//	@Success		204	"Saved"
//	@Security		BearerAuth
//	@Router			/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Save(r.Context()); err != nil {
		writeError(w, "save", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListItems handles GET /api/items.
//
//	@Summary		List indexed symbols with optional pagination and filtering
//	@Tags			items
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			symbol_type	query		string	false	"Filter by symbol type"	Enums(movie clip, graphic, button)
//	@Success		200			{object}	ItemListResponse
//	@Security		BearerAuth
//	@Router			/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListItems(r.Context(), limit, offset, q.Get("symbol_type"))
	if err != nil {
		writeError(w, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: total})
}

// Library handles GET /api/library.
//
//	@Summary		List every library name in insertion order
//	@Tags			items
//	@Produce		json
//	@Success		200	{object}	NamesResponse
//	@Security		BearerAuth
//	@Router			/library [get]
func (h *Handler) Library(w http.ResponseWriter, r *http.Request) {
	names := h.svc.Names(r.Context())
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, NamesResponse{Names: names})
}

// GetItem handles GET /api/items/*.
//
//	@Summary		Get a library item by qualified name
//	@Tags			items
//	@Produce		json
//	@Param			name	path		string	true	"Item name"
//	@Success		200		{object}	workspace.ItemDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{name} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	name := itemName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	it, err := h.svc.GetItem(r.Context(), name)
	if err != nil {
		writeError(w, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// CreateItem handles POST /api/items.
//
//	@Summary		Create an empty symbol or folder
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateItemRequest	true	"Item to create"
//	@Success		201		{object}	workspace.ItemDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		501		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items [post]
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Type == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("type and name are required"))
		return
	}
	it, err := h.svc.AddItem(r.Context(), req.Type, req.Name)
	if err != nil {
		writeError(w, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// UpdateItem handles PATCH /api/items/*.
//
//	@Summary		Rename an item or move it into a folder
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string				true	"Item name"
//	@Param			body	body		UpdateItemRequest	true	"New name or folder"
//	@Success		200		{object}	workspace.ItemDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{name} [patch]
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	name := itemName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	var req UpdateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var (
		it  *workspace.ItemDetail
		err error
	)
	switch {
	case req.Name != "" && req.Folder != nil:
		writeJSON(w, http.StatusBadRequest, errorBody("give either name or folder"))
		return
	case req.Name != "":
		it, err = h.svc.RenameItem(r.Context(), name, req.Name)
	case req.Folder != nil:
		it, err = h.svc.MoveItem(r.Context(), name, *req.Folder)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("name or folder is required"))
		return
	}
	if err != nil {
		writeError(w, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// DeleteItem handles DELETE /api/items/*.
//
//	@Summary		Delete an item and every placement of it
//	@Tags			items
//	@Produce		json
//	@Param			name	path		string	true	"Item name"
//	@Success		200		{object}	DeleteItemResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{name} [delete]
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	name := itemName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	n, err := h.svc.RemoveItem(r.Context(), name)
	if err != nil {
		writeError(w, "delete item", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteItemResponse{Pruned: n})
}

// Dependents handles GET /api/dependents/*.
//
//	@Summary		List the symbols whose timelines reference an item
//	@Tags			items
//	@Produce		json
//	@Param			name	path		string	true	"Item name"
//	@Success		200		{object}	DependentsResponse
//	@Security		BearerAuth
//	@Router			/dependents/{name} [get]
func (h *Handler) Dependents(w http.ResponseWriter, r *http.Request) {
	name := itemName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	deps, err := h.svc.Dependents(r.Context(), name)
	if err != nil {
		writeError(w, "dependents", err)
		return
	}
	writeJSON(w, http.StatusOK, DependentsResponse{Name: name, Dependents: deps})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across symbol names and text
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// ListLayers handles GET /api/timelines/{timeline}/layers.
//
//	@Summary		List the layers of a timeline
//	@Tags			timelines
//	@Produce		json
//	@Param			timeline	path		int	true	"Timeline index"
//	@Success		200			{object}	LayersResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines/{timeline}/layers [get]
func (h *Handler) ListLayers(w http.ResponseWriter, r *http.Request) {
	p, ok := intParams(r, "timeline")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("timeline must be an integer"))
		return
	}
	layers, err := h.svc.Layers(r.Context(), p[0])
	if err != nil {
		writeError(w, "list layers", err)
		return
	}
	writeJSON(w, http.StatusOK, LayersResponse{Layers: layers})
}

// CreateLayer handles POST /api/timelines/{timeline}/layers.
//
//	@Summary		Append a layer to a timeline
//	@Tags			timelines
//	@Accept			json
//	@Produce		json
//	@Param			timeline	path		int					true	"Timeline index"
//	@Param			body		body		CreateLayerRequest	true	"Layer to add"
//	@Success		201			{object}	workspace.LayerInfo
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines/{timeline}/layers [post]
func (h *Handler) CreateLayer(w http.ResponseWriter, r *http.Request) {
	p, ok := intParams(r, "timeline")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("timeline must be an integer"))
		return
	}
	var req CreateLayerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	if req.Type == "" {
		req.Type = "normal"
	}
	l, err := h.svc.AddLayer(r.Context(), p[0], req.Name, req.Type)
	if err != nil {
		writeError(w, "create layer", err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// InsertFrames handles POST /api/timelines/{timeline}/frames.
//
//	@Summary		Insert frames into every layer of a timeline
//	@Tags			timelines
//	@Accept			json
//	@Param			timeline	path	int				true	"Timeline index"
//	@Param			body		body	FramesRequest	true	"Insertion point and count"
//	@Success		204			"Inserted"
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines/{timeline}/frames [post]
func (h *Handler) InsertFrames(w http.ResponseWriter, r *http.Request) {
	p, ok := intParams(r, "timeline")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("timeline must be an integer"))
		return
	}
	var req FramesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.InsertFrames(r.Context(), p[0], req.At, req.Count); err != nil {
		writeError(w, "insert frames", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFrames handles DELETE /api/timelines/{timeline}/frames.
//
//	@Summary		Remove frames from every layer of a timeline
//	@Tags			timelines
//	@Param			timeline	path	int	true	"Timeline index"
//	@Param			at			query	int	true	"First frame removed"
//	@Param			count		query	int	true	"Number of frames"
//	@Success		204			"Removed"
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines/{timeline}/frames [delete]
func (h *Handler) RemoveFrames(w http.ResponseWriter, r *http.Request) {
	p, ok := intParams(r, "timeline")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("timeline must be an integer"))
		return
	}
	q := r.URL.Query()
	at, errAt := strconv.Atoi(q.Get("at"))
	count, errCount := strconv.Atoi(q.Get("count"))
	if errAt != nil || errCount != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'at' and 'count' are required"))
		return
	}
	if err := h.svc.RemoveFrames(r.Context(), p[0], at, count); err != nil {
		writeError(w, "remove frames", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConvertToKeyframes handles POST /api/timelines/{timeline}/layers/{layer}/keyframes.
//
//	@Summary		Convert a frame range of a layer to keyframes
//	@Tags			timelines
//	@Accept			json
//	@Produce		json
//	@Param			timeline	path		int					true	"Timeline index"
//	@Param			layer		path		int					true	"Layer index"
//	@Param			body		body		KeyframesRequest	true	"Frame range"
//	@Success		200			{object}	ChangedResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines/{timeline}/layers/{layer}/keyframes [post]
func (h *Handler) ConvertToKeyframes(w http.ResponseWriter, r *http.Request) {
	p, ok := intParams(r, "timeline", "layer")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("timeline and layer must be integers"))
		return
	}
	var req KeyframesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	changed, err := h.svc.ConvertToKeyframes(r.Context(), p[0], p[1], req.Start, req.End)
	if err != nil {
		writeError(w, "convert keyframes", err)
		return
	}
	writeJSON(w, http.StatusOK, ChangedResponse{Changed: changed})
}

// ClearKeyframe handles DELETE /api/timelines/{timeline}/layers/{layer}/keyframes/{frame}.
//
//	@Summary		Merge a keyframe into the one before it
//	@Tags			timelines
//	@Produce		json
//	@Param			timeline	path		int	true	"Timeline index"
//	@Param			layer		path		int	true	"Layer index"
//	@Param			frame		path		int	true	"Keyframe start"
//	@Success		200			{object}	ChangedResponse
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines/{timeline}/layers/{layer}/keyframes/{frame} [delete]
func (h *Handler) ClearKeyframe(w http.ResponseWriter, r *http.Request) {
	p, ok := intParams(r, "timeline", "layer", "frame")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("timeline, layer and frame must be integers"))
		return
	}
	changed, err := h.svc.ClearKeyframe(r.Context(), p[0], p[1], p[2])
	if err != nil {
		writeError(w, "clear keyframe", err)
		return
	}
	writeJSON(w, http.StatusOK, ChangedResponse{Changed: changed})
}

// GetFrame handles GET /api/timelines/{timeline}/layers/{layer}/frames/{frame}.
//
//	@Summary		Describe the keyframe governing a frame
//	@Tags			timelines
//	@Produce		json
//	@Param			timeline	path		int	true	"Timeline index"
//	@Param			layer		path		int	true	"Layer index"
//	@Param			frame		path		int	true	"Frame number"
//	@Success		200			{object}	workspace.FrameInfo
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines/{timeline}/layers/{layer}/frames/{frame} [get]
func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	p, ok := intParams(r, "timeline", "layer", "frame")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("timeline, layer and frame must be integers"))
		return
	}
	f, err := h.svc.Frame(r.Context(), p[0], p[1], p[2])
	if err != nil {
		writeError(w, "get frame", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// PlaceItem handles POST /api/timelines/{timeline}/layers/{layer}/frames/{frame}/elements.
//
//	@Summary		Place a library item on a frame
//	@Tags			timelines
//	@Accept			json
//	@Produce		json
//	@Param			timeline	path		int				true	"Timeline index"
//	@Param			layer		path		int				true	"Layer index"
//	@Param			frame		path		int				true	"Frame number"
//	@Param			body		body		PlaceRequest	true	"Item and position"
//	@Success		201			{object}	workspace.FrameInfo
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines/{timeline}/layers/{layer}/frames/{frame}/elements [post]
func (h *Handler) PlaceItem(w http.ResponseWriter, r *http.Request) {
	p, ok := intParams(r, "timeline", "layer", "frame")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("timeline, layer and frame must be integers"))
		return
	}
	var req PlaceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Item == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("item is required"))
		return
	}
	f, err := h.svc.Place(r.Context(), req.Item, workspace.Placement{
		Timeline: p[0], Layer: p[1], Frame: p[2], X: req.X, Y: req.Y,
	})
	if err != nil {
		writeError(w, "place item", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// ShapePaths handles GET /api/timelines/{timeline}/layers/{layer}/frames/{frame}/elements/{element}/paths.
//
//	@Summary		Decode the edges of a shape into path commands
//	@Tags			timelines
//	@Produce		json
//	@Param			timeline	path		int	true	"Timeline index"
//	@Param			layer		path		int	true	"Layer index"
//	@Param			frame		path		int	true	"Frame number"
//	@Param			element		path		int	true	"Element index"
//	@Success		200			{object}	PathsResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timelines/{timeline}/layers/{layer}/frames/{frame}/elements/{element}/paths [get]
func (h *Handler) ShapePaths(w http.ResponseWriter, r *http.Request) {
	p, ok := intParams(r, "timeline", "layer", "frame", "element")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("timeline, layer, frame and element must be integers"))
		return
	}
	paths, err := h.svc.ShapePaths(r.Context(), p[0], p[1], p[2], p[3])
	if err != nil {
		writeError(w, "shape paths", err)
		return
	}
	writeJSON(w, http.StatusOK, PathsResponse{Paths: paths})
}

// Import handles POST /api/import.
//
//	@Summary		Import an item and its dependencies from another document
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ImportRequest	true	"Source document and item"
//	@Success		200		{object}	workspace.ImportResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Source == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("source and name are required"))
		return
	}
	var (
		res *workspace.ImportResult
		err error
	)
	if req.DryRun {
		res, err = h.svc.PlanImport(r.Context(), req.Source, req.Name)
	} else {
		res, err = h.svc.ImportFrom(r.Context(), req.Source, req.Name)
	}
	if err != nil {
		writeError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
