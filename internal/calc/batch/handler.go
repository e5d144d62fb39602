package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"Trusslab/internal/calc/truss"
)

// DefaultMaxItems caps a batch when Handler.MaxItems is zero.
const DefaultMaxItems = 32

// maxUpload bounds the multipart body accepted by Import.
const maxUpload = 8 << 20

type Handler struct {
	Limits   truss.Limits
	MaxItems int
}

func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var input BatchInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	h.run(w, r, input)
}

// Import runs the cases of an uploaded XLSX sheet (form field "file").
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	items, err := ParseSheet(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.run(w, r, BatchInput{Items: items})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, input BatchInput) {
	if err := h.check(input); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	res, err := Run(r.Context(), input)
	if err != nil {
		log.Printf("batch: %v", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Printf("batch: encode response: %v", err)
	}
}

func (h *Handler) check(input BatchInput) error {
	if len(input.Items) == 0 {
		return ErrNoItems
	}
	limit := h.MaxItems
	if limit <= 0 {
		limit = DefaultMaxItems
	}
	if len(input.Items) > limit {
		return fmt.Errorf("%w: %d, limit %d", ErrTooMany, len(input.Items), limit)
	}
	for i, item := range input.Items {
		if err := h.Limits.Check(item); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNoItems), errors.Is(err, ErrBadSheet):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooMany):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrCanceled):
		return http.StatusServiceUnavailable
	}
	return truss.StatusFor(err)
}
