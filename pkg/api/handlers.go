package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/decker502/sanctuary/pkg/game"
	"github.com/decker502/sanctuary/pkg/sanctuary"
)

const (
	defaultSnapshotWidth  = 800
	defaultSnapshotHeight = 600
	maxSnapshotSide       = 2048
	minSnapshotSide       = 64
)

type placementResponse struct {
	ID        string         `json:"id"`
	Category  string         `json:"category"`
	Cell      sanctuary.Cell `json:"cell"`
	Original  sanctuary.Cell `json:"original"`
	Visible   bool           `json:"visible"`
	Growths   int            `json:"growths"`
	Duplicate bool           `json:"duplicate"`
}

type reflowResponse struct {
	View     string `json:"view"`
	GridSize int    `json:"gridSize"`
	Visible  int    `json:"visible"`
	Placed   int    `json:"placed"`
	Changed  bool   `json:"changed"`
}

type catalogEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Unlocked bool   `json:"unlocked"`
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *routerHandlers) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Layout())
}

func (h *routerHandlers) handleGetLayoutPNG(w http.ResponseWriter, r *http.Request) {
	width, err := sideParam(r, "width", defaultSnapshotWidth)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := sideParam(r, "height", defaultSnapshotHeight)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	renderer := SnapshotRenderer{
		Catalog:    h.service.Catalog(),
		Projection: h.service.Projection(),
	}
	if err := renderer.Render(w, h.service.Layout(), width, height); err != nil {
		log.Printf("[API] Failed to render layout snapshot: %v", err)
	}
}

func (h *routerHandlers) handleSetView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Window string `json:"window"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	window, err := sanctuary.ParseViewWindow(req.Window)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, changed := h.service.SetView(window)
	writeJSON(w, http.StatusOK, newReflowResponse(res, changed))
}

func (h *routerHandlers) handleRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newReflowResponse(h.service.Refresh(), true))
}

func (h *routerHandlers) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	cat := h.service.Catalog()
	entries := make([]catalogEntry, 0)
	if cat != nil {
		for _, a := range cat.Animals {
			entries = append(entries, catalogEntry{
				ID:       a.ID,
				Name:     a.Name,
				Color:    a.Color,
				Unlocked: h.service.IsUnlocked(a.ID),
			})
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *routerHandlers) handleUnlockAnimal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, "id is required", http.StatusBadRequest)
		return
	}

	p, err := h.service.UnlockAnimal(req.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writePlacement(w, req.ID, sanctuary.CategoryAnimal, p)
}

func (h *routerHandlers) handleHatchRandom(w http.ResponseWriter, r *http.Request) {
	id, p, err := h.service.HatchRandom()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writePlacement(w, id, sanctuary.CategoryAnimal, p)
}

func (h *routerHandlers) handleAddGrave(w http.ResponseWriter, r *http.Request) {
	id, p, err := h.service.AddGrave()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writePlacement(w, id, sanctuary.CategoryMarker, p)
}

func (h *routerHandlers) handleSetPending(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := h.service.SetPendingAnimal(req.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"pending": req.ID})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Stats())
}

func newReflowResponse(res sanctuary.ReflowResult, changed bool) reflowResponse {
	return reflowResponse{
		View:     res.Window.String(),
		GridSize: res.GridSize,
		Visible:  res.Visible,
		Placed:   res.Placed,
		Changed:  changed,
	}
}

// writePlacement 新放置返回 201，重复解锁返回 200
func writePlacement(w http.ResponseWriter, id string, category sanctuary.Category, p sanctuary.Placement) {
	status := http.StatusCreated
	if p.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, placementResponse{
		ID:        id,
		Category:  category.String(),
		Cell:      p.Cell,
		Original:  p.Original,
		Visible:   p.Visible,
		Growths:   p.Growths,
		Duplicate: p.Duplicate,
	})
}

// writeServiceError 将服务错误映射为 HTTP 状态码
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sanctuary.ErrUnknownIdentity):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, game.ErrAllAnimalsUnlocked):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, sanctuary.ErrPlacementExhausted):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		log.Printf("[API] Unexpected service error: %v", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// sideParam 读取图片边长参数，缺省时返回 def
func sideParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < minSnapshotSide || v > maxSnapshotSide {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, minSnapshotSide, maxSnapshotSide)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}
