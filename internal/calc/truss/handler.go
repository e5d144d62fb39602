package truss

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"Trusslab/internal/calc/fea"
)

type Handler struct {
	Limits Limits
}

type closestNodeRequest struct {
	Input
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type closestNodeResponse struct {
	Node int     `json:"node"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.Limits.CheckMesh(input); err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	res, err := Analyze(input)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	writeJSON(w, res)
}

// Optimize answers 200 even when the run stopped early; clients read the
// success flag and error message in the body.
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.Limits.Check(input); err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	res, err := Optimize(r.Context(), input)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	if !res.Success {
		log.Printf("truss: optimization %s stopped after %d iterations: %s", res.ID, res.Iterations, res.Error)
	}
	writeJSON(w, res)
}

func (h *Handler) ClosestNode(w http.ResponseWriter, r *http.Request) {
	var req closestNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.Limits.CheckMesh(req.Input); err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	m, err := BuildMesh(req.Input)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	n := m.FindClosestNode(req.X, req.Y)
	if n < 0 {
		http.Error(w, "mesh has no nodes", http.StatusUnprocessableEntity)
		return
	}
	node := m.Nodes()[n]
	writeJSON(w, closestNodeResponse{Node: n, X: node.X, Y: node.Y})
}

// StatusFor maps calculation errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, fea.ErrNotReady), errors.Is(err, fea.ErrSingular):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("truss: encode response: %v", err)
	}
}
