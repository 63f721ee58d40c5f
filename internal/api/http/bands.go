package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mind-engage/ielts-practice/internal/band"
	"github.com/mind-engage/ielts-practice/internal/formats"
)

type convertReq struct {
	Raw   *int   `json:"raw"`
	Total int    `json:"total,omitempty"` // defaults to 40
	Skill string `json:"skill"`
}

type convertResp struct {
	Skill band.Skill `json:"skill"`
	Raw   int        `json:"raw"`
	Total int        `json:"total"`
	Band  float64    `json:"band"`
}

// POST /bands/convert  {"raw": 32, "skill": "listening"}
func ConvertBandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req convertReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Raw == nil {
			http.Error(w, "raw required", http.StatusBadRequest)
			return
		}
		skill, err := band.ParseSkill(req.Skill)
		if err != nil {
			writeError(w, err)
			return
		}
		if req.Total == 0 {
			req.Total = band.SectionItems
		}
		b, err := band.ConvertScaled(*req.Raw, req.Total, skill)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, convertResp{Skill: skill, Raw: *req.Raw, Total: req.Total, Band: b})
	}
}

// POST /bands/overall  {"scores": [6, 6.5, 7, 7]}
func OverallBandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Scores []float64 `json:"scores"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		b, err := band.CalculateOverallBand(req.Scores)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"band": b})
	}
}

// GET /bands/tables
func BandTablesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, band.Tables())
	}
}

// GET /formats/{format}
func FormatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := formats.ParseFormat(chi.URLParam(r, "format"))
		if err != nil {
			writeError(w, err)
			return
		}
		secs, err := formats.Sections(f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"format": f, "sections": secs})
	}
}
