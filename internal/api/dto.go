package api

import (
	"github.com/starford/xflkit/internal/index"
	"github.com/starford/xflkit/internal/workspace"
)

// CreateItemRequest is the request body for creating a library item.
type CreateItemRequest struct {
	Type string `json:"type" example:"graphic" enums:"movie clip,graphic,button,folder" validate:"required"`
	Name string `json:"name" example:"Props/Ball" validate:"required"`
}

// UpdateItemRequest renames an item (Name) or moves it into a folder
// (Folder; an empty string moves it to the library root).
type UpdateItemRequest struct {
	Name   string  `json:"name,omitempty" example:"Props/BigBall"`
	Folder *string `json:"folder,omitempty" example:"Props"`
}

// CreateLayerRequest is the request body for adding a layer.
type CreateLayerRequest struct {
	Name string `json:"name" example:"Background" validate:"required"`
	Type string `json:"type,omitempty" example:"normal" enums:"normal,guide,folder,mask"`
}

// FramesRequest inserts frames into every layer of a timeline.
type FramesRequest struct {
	At    int `json:"at" example:"0"`
	Count int `json:"count" example:"5" validate:"required"`
}

// KeyframesRequest converts the frames [Start, End] of a layer to keyframes.
type KeyframesRequest struct {
	Start int `json:"start" example:"2"`
	End   int `json:"end" example:"4"`
}

// PlaceRequest places a library item on a frame.
type PlaceRequest struct {
	Item string  `json:"item" example:"Props/Ball" validate:"required"`
	X    float64 `json:"x" example:"100"`
	Y    float64 `json:"y" example:"50"`
}

// ImportRequest copies an item and its dependencies from another document.
type ImportRequest struct {
	Source string `json:"source" example:"/work/shared.fla" validate:"required"`
	Name   string `json:"name" example:"Props/Ball" validate:"required"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// ChangedResponse reports whether a keyframe edit changed the layer.
type ChangedResponse struct {
	Changed bool `json:"changed" validate:"required"`
}

// DeleteItemResponse reports how many placements a removal dropped.
type DeleteItemResponse struct {
	Pruned int `json:"pruned" example:"2" validate:"required"`
}

// ItemListResponse wraps paginated item listings.
type ItemListResponse struct {
	Items []workspace.ItemListItem `json:"items" validate:"required"`
	Total int                      `json:"total" example:"42" validate:"required"`
}

// NamesResponse lists library names in insertion order.
type NamesResponse struct {
	Names []string `json:"names" validate:"required"`
}

// DependentsResponse lists the symbols referencing an item.
type DependentsResponse struct {
	Name       string   `json:"name" example:"face.png" validate:"required"`
	Dependents []string `json:"dependents" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// LayersResponse lists the layers of a timeline.
type LayersResponse struct {
	Layers []workspace.LayerInfo `json:"layers" validate:"required"`
}

// PathsResponse holds the path commands decoded from a shape's edges.
type PathsResponse struct {
	Paths []string `json:"paths" validate:"required"`
}

// MediaUploadResponse is returned after a successful media upload.
type MediaUploadResponse = workspace.ItemDetail
