package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"Trusslab/internal/calc/truss"
)

// Request is the body of every report endpoint: the case to optimize and
// the title block.
type Request struct {
	Meta  Meta        `json:"meta"`
	Input truss.Input `json:"input"`
}

type Handler struct {
	Limits truss.Limits
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "application/pdf", "report.pdf", func(buf io.Writer, req Request, res truss.OptimizationResult) error {
		return PDF(buf, req.Meta, res)
	})
}

func (h *Handler) XLSX(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "report.xlsx",
		func(buf io.Writer, _ Request, res truss.OptimizationResult) error {
			return XLSX(buf, res)
		})
}

func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "image/png", "convergence.png", func(buf io.Writer, _ Request, res truss.OptimizationResult) error {
		return ConvergencePNG(buf, res.History)
	})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, contentType, filename string,
	render func(io.Writer, Request, truss.OptimizationResult) error) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.Limits.Check(req.Input); err != nil {
		http.Error(w, err.Error(), truss.StatusFor(err))
		return
	}
	res, err := truss.Optimize(r.Context(), req.Input)
	if err != nil {
		http.Error(w, err.Error(), truss.StatusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, req, res); err != nil {
		if errors.Is(err, ErrTooFewPoints) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		log.Printf("report: %s: %v", filename, err)
		http.Error(w, "Report generation error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("report: write %s: %v", filename, err)
	}
}
