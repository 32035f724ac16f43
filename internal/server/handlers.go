package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/KaramelBytes/adpulse-cli/internal/analysis"
	"github.com/KaramelBytes/adpulse-cli/internal/parser"
	"github.com/KaramelBytes/adpulse-cli/internal/schema"
)

// errorResponse is the JSON body of every non-2xx API reply.
type errorResponse struct {
	Error  string `json:"error"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

type analyzeResponse struct {
	Headers  []string           `json:"headers"`
	Insights []analysis.Insight `json:"insights"`
	Metrics  analysis.Metrics   `json:"metrics"`
}

// jsonRows is the alternative application/json request body.
type jsonRows struct {
	Rows []map[string]any `json:"rows"`
}

var errEmptyUpload = errors.New("multipart field \"file\" is required")

// badRequest marks client mistakes other than malformed delimited text.
type badRequest struct{ error }

func (e badRequest) Unwrap() error { return e.error }

// clientErr keeps size-limit errors intact so they map to 413.
func clientErr(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return err
	}
	return badRequest{err}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())
	id := uuid.NewString()
	w.Header().Set("X-Analysis-ID", id)

	ds, err := s.dataset(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := r.Context().Err(); err != nil {
		s.fail(w, r, err)
		return
	}
	res := analysis.Analyze(ds.Rows, s.cfg.Rules)
	s.metrics.observe(len(ds.Rows), &res)
	log.Debug().Str("analysis_id", id).Int("rows", len(ds.Rows)).Int("insights", len(res.Insights)).Msg("analysis complete")

	writeJSON(w, http.StatusOK, analyzeResponse{Headers: ds.Headers, Insights: res.Insights, Metrics: res.Metrics})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	ds, err := s.dataset(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// dataset reads the request body as raw delimited text, a multipart upload in
// field "file", or a JSON {"rows": [...]} document.
func (s *Server) dataset(w http.ResponseWriter, r *http.Request) (*analysis.Dataset, error) {
	delim, err := parser.ParseDelimiter(r.URL.Query().Get("delimiter"))
	if err != nil {
		return nil, badRequest{err}
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(s.cfg.MaxBodyBytes); err != nil {
			return nil, clientErr(err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, badRequest{errEmptyUpload}
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return analysis.Parse(string(b), parser.Options{Delimiter: delim})
	case "application/json":
		var body jsonRows
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return nil, clientErr(fmt.Errorf("decode json body: %w", err))
		}
		return jsonDataset(body.Rows), nil
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return analysis.Parse(string(b), parser.Options{Delimiter: delim})
}

// jsonDataset validates decoded rows. JSON objects carry no column order, so
// headers are the sorted union of keys.
func jsonDataset(in []map[string]any) *analysis.Dataset {
	seen := map[string]bool{}
	ds := &analysis.Dataset{Headers: []string{}, Rows: make([]schema.Row, 0, len(in))}
	for _, m := range in {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				ds.Headers = append(ds.Headers, k)
			}
		}
		ds.Rows = append(ds.Rows, schema.ValidateValues(m))
	}
	sort.Strings(ds.Headers)
	return ds
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		mal     *parser.MalformedInputError
		tooBig  *http.MaxBytesError
		bad     badRequest
		status  = http.StatusInternalServerError
		outcome = outcomeError
		body    = errorResponse{Error: err.Error()}
	)
	switch {
	case errors.As(err, &mal):
		status, outcome = http.StatusUnprocessableEntity, outcomeMalformed
		body.Line, body.Column = mal.Line, mal.Column
	case errors.As(err, &tooBig):
		status, outcome = http.StatusRequestEntityTooLarge, outcomeTooLarge
		body.Error = fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit)
	case errors.As(err, &bad):
		status = http.StatusBadRequest
	}
	if r.URL.Path == "/api/v1/analyze" {
		s.metrics.Analyses.WithLabelValues(outcome).Inc()
	}
	zerolog.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg("request rejected")
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
