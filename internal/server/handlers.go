package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Sumatoshi-tech/itree/pkg/index"
	"github.com/Sumatoshi-tech/itree/pkg/rangefile"
)

// maxBodyBytes caps mutation request bodies.
const maxBodyBytes = 1 << 20

var errMissingParam = errors.New("missing query parameter")

// IntervalRequest is the body of POST and DELETE /v1/intervals. Bounds are
// integers or IPv4 addresses.
type IntervalRequest struct {
	Low   json.RawMessage `json:"low"`
	High  json.RawMessage `json:"high"`
	Value string          `json:"value"`
}

// SearchResponse is returned by the search, stab and list endpoints.
type SearchResponse struct {
	Matches []index.Match `json:"matches"`
	Count   int           `json:"count"`
}

// MutationResponse is returned by the insert and remove endpoints.
type MutationResponse struct {
	Removed bool `json:"removed,omitempty"`
	Size    int  `json:"size"`
}

// ErrorResponse carries a client-facing error message.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearch(rw http.ResponseWriter, hr *http.Request) {
	low, err := boundParam(hr, "low")
	if err != nil {
		s.writeError(hr.Context(), rw, http.StatusBadRequest, err)

		return
	}

	high, err := boundParam(hr, "high")
	if err != nil {
		s.writeError(hr.Context(), rw, http.StatusBadRequest, err)

		return
	}

	key := searchKey{low: low, high: high, generation: s.idx.Generation()}

	matches, ok := s.cached(key)
	if !ok {
		matches, err = s.idx.Search(hr.Context(), low, high)
		if err != nil {
			s.writeError(hr.Context(), rw, http.StatusBadRequest, err)

			return
		}

		s.store(key, matches)
	}

	s.writeJSON(hr.Context(), rw, http.StatusOK, newSearchResponse(matches))
}

func (s *Server) handleStab(rw http.ResponseWriter, hr *http.Request) {
	point, err := boundParam(hr, "point")
	if err != nil {
		s.writeError(hr.Context(), rw, http.StatusBadRequest, err)

		return
	}

	key := searchKey{low: point, high: point, stab: true, generation: s.idx.Generation()}

	matches, ok := s.cached(key)
	if !ok {
		matches = s.idx.Stab(hr.Context(), point)
		s.store(key, matches)
	}

	s.writeJSON(hr.Context(), rw, http.StatusOK, newSearchResponse(matches))
}

func (s *Server) handleList(rw http.ResponseWriter, hr *http.Request) {
	s.writeJSON(hr.Context(), rw, http.StatusOK, newSearchResponse(s.idx.Keys()))
}

func (s *Server) handleInsert(rw http.ResponseWriter, hr *http.Request) {
	low, high, value, err := decodeInterval(rw, hr)
	if err != nil {
		s.writeError(hr.Context(), rw, http.StatusBadRequest, err)

		return
	}

	err = s.idx.Insert(hr.Context(), low, high, value)
	if err != nil {
		s.writeError(hr.Context(), rw, http.StatusBadRequest, err)

		return
	}

	s.writeJSON(hr.Context(), rw, http.StatusCreated, MutationResponse{Size: s.idx.Len()})
}

func (s *Server) handleRemove(rw http.ResponseWriter, hr *http.Request) {
	low, high, value, err := decodeInterval(rw, hr)
	if err != nil {
		s.writeError(hr.Context(), rw, http.StatusBadRequest, err)

		return
	}

	if !s.idx.Remove(hr.Context(), low, high, value) {
		s.writeJSON(hr.Context(), rw, http.StatusNotFound, MutationResponse{Size: s.idx.Len()})

		return
	}

	s.writeJSON(hr.Context(), rw, http.StatusOK, MutationResponse{Removed: true, Size: s.idx.Len()})
}

func (s *Server) handleStats(rw http.ResponseWriter, hr *http.Request) {
	s.writeJSON(hr.Context(), rw, http.StatusOK, s.idx.Stats())
}

// searchKey identifies a cached result. Entries from older generations are
// never hit again and age out of the LRU.
type searchKey struct {
	low, high  int64
	generation uint64
	stab       bool
}

func (s *Server) cached(key searchKey) ([]index.Match, bool) {
	if s.cache == nil {
		return nil, false
	}

	return s.cache.Get(key)
}

func (s *Server) store(key searchKey, matches []index.Match) {
	if s.cache != nil {
		s.cache.Add(key, matches)
	}
}

func newSearchResponse(matches []index.Match) SearchResponse {
	if matches == nil {
		matches = []index.Match{}
	}

	return SearchResponse{Matches: matches, Count: len(matches)}
}

func boundParam(hr *http.Request, name string) (int64, error) {
	raw := hr.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", errMissingParam, name)
	}

	return rangefile.ParseBound(raw)
}

func decodeInterval(rw http.ResponseWriter, hr *http.Request) (low, high int64, value string, err error) {
	var req IntervalRequest

	dec := json.NewDecoder(http.MaxBytesReader(rw, hr.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err = dec.Decode(&req)
	if err != nil {
		return 0, 0, "", fmt.Errorf("decode body: %w", err)
	}

	low, err = rawBound(req.Low, "low")
	if err != nil {
		return 0, 0, "", err
	}

	high, err = rawBound(req.High, "high")
	if err != nil {
		return 0, 0, "", err
	}

	return low, high, req.Value, nil
}

// rawBound accepts a JSON number or a JSON string holding a bound.
func rawBound(raw json.RawMessage, name string) (int64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: %s", errMissingParam, name)
	}

	var text string
	if json.Unmarshal(raw, &text) == nil {
		return rangefile.ParseBound(text)
	}

	return rangefile.ParseBound(string(raw))
}

func (s *Server) writeJSON(ctx context.Context, rw http.ResponseWriter, code int, value any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	encodeErr := json.NewEncoder(rw).Encode(value)
	if encodeErr != nil {
		s.logger.ErrorContext(ctx, "failed to encode JSON response", "error", encodeErr)
	}
}

func (s *Server) writeError(ctx context.Context, rw http.ResponseWriter, code int, err error) {
	s.logger.DebugContext(ctx, "request rejected", slog.Int("status", code), slog.Any("error", err))
	s.writeJSON(ctx, rw, code, ErrorResponse{Error: err.Error()})
}
