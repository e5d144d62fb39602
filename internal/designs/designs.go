// Package designs serves the saved calculation cases of the signed-in user.
package designs

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"Trusslab/internal/auth"
	"Trusslab/internal/calc/truss"
	"Trusslab/internal/repo"

	"github.com/gorilla/mux"
)

type Handler struct {
	Repo   repo.DesignRepository
	Limits truss.Limits
}

type SaveRequest struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Input truss.Input `json:"input"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.Repo.ListDesigns(r.Context(), userID)
	if err != nil {
		log.Printf("designs: list: %v", err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []repo.Design{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	d, err := h.Repo.GetDesign(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Save analyzes the case before storing it, so only inputs that solve are kept
// and the summary columns are filled from the analysis.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "Name required", http.StatusBadRequest)
		return
	}
	if err := h.Limits.CheckMesh(req.Input); err != nil {
		http.Error(w, err.Error(), truss.StatusFor(err))
		return
	}
	res, err := truss.Analyze(req.Input)
	if err != nil {
		http.Error(w, err.Error(), truss.StatusFor(err))
		return
	}

	d := &repo.Design{
		ID:           req.ID,
		UserID:       userID,
		Name:         req.Name,
		Input:        req.Input,
		StrainEnergy: res.StrainEnergy,
		Volume:       res.Volume,
	}
	if err := h.Repo.SaveDesign(r.Context(), d); err != nil {
		h.fail(w, err)
		return
	}
	status := http.StatusCreated
	if req.ID != "" {
		status = http.StatusOK
	}
	writeJSON(w, status, d)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.Repo.DeleteDesign(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		http.Error(w, "Design not found", http.StatusNotFound)
		return
	}
	log.Printf("designs: %v", err)
	http.Error(w, "DB error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("designs: encode response: %v", err)
	}
}
