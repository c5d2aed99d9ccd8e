// Package cloudflaretest provides an in-memory stand-in for the parts of the
// cloudflare v4 api the reconciler talks to.
package cloudflaretest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Record struct {
	ID      string `json:"id"`
	ZoneID  string `json:"zone_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

// Update is one PUT received by the server.
type Update struct {
	ZoneID   string
	RecordID string
	Raw      string
	Body     map[string]any
}

type Server struct {
	*httptest.Server

	Token       string
	TokenStatus string
	// PageSize caps per_page when non-zero.
	PageSize int

	mu       sync.Mutex
	zones    []Zone
	records  map[string][]Record
	updates  []Update
	failures map[string]int
	requests []string
}

func NewServer(t testing.TB, token string) *Server {
	s := &Server{
		Token:       token,
		TokenStatus: "active",
		records:     map[string][]Record{},
		failures:    map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /zones", s.listZones)
	mux.HandleFunc("GET /zones/{zone}/dns_records", s.listRecords)
	mux.HandleFunc("PUT /zones/{zone}/dns_records/{record}", s.updateRecord)
	mux.HandleFunc("GET /user/tokens/verify", s.verifyToken)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		status, fail := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeError(w, http.StatusUnauthorized, 10000, "Authentication error")
			return
		}
		if fail {
			writeError(w, status, 1000, "injected failure")
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) AddZone(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = append(s.zones, Zone{ID: id, Name: name})
}

func (s *Server) AddRecord(zoneID string, r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ZoneID = zoneID
	s.records[zoneID] = append(s.records[zoneID], r)
}

// FailWith makes every request matching method and path answer with status.
func (s *Server) FailWith(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

func (s *Server) Updates() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Update(nil), s.updates...)
}

// Requests returns "METHOD /path" for every request received, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) Record(zoneID, recordID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records[zoneID] {
		if r.ID == recordID {
			return r, true
		}
	}
	return Record{}, false
}

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	zones := append([]Zone(nil), s.zones...)
	s.mu.Unlock()
	writePage(w, r, zones, s.PageSize)
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	zoneID := r.PathValue("zone")
	s.mu.Lock()
	records, ok := s.records[zoneID]
	if !ok {
		ok = s.hasZone(zoneID)
	}
	records = append([]Record(nil), records...)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, 7003, "Could not route to /zones/"+zoneID+"/dns_records")
		return
	}
	writePage(w, r, records, s.PageSize)
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	zoneID, recordID := r.PathValue("zone"), r.PathValue("record")

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, 9207, "Request body is invalid.")
		return
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		writeError(w, http.StatusBadRequest, 9207, "Request body is invalid.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, Update{ZoneID: zoneID, RecordID: recordID, Raw: string(raw), Body: body})

	for i, rec := range s.records[zoneID] {
		if rec.ID != recordID {
			continue
		}
		rec.Type, _ = body["type"].(string)
		rec.Name, _ = body["name"].(string)
		rec.Content, _ = body["content"].(string)
		if ttl, ok := body["ttl"].(float64); ok {
			rec.TTL = int(ttl)
		}
		s.records[zoneID][i] = rec
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "errors": []any{}, "messages": []any{}, "result": rec})
		return
	}
	writeError(w, http.StatusNotFound, 81044, "Record does not exist.")
}

func (s *Server) verifyToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"errors":   []any{},
		"messages": []any{},
		"result":   map[string]any{"id": "test-token-id", "status": s.TokenStatus},
	})
}

func (s *Server) hasZone(id string) bool {
	for _, z := range s.zones {
		if z.ID == id {
			return true
		}
	}
	return false
}

func writePage[T any](w http.ResponseWriter, r *http.Request, items []T, maxPerPage int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 20
	}
	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}

	totalPages := (len(items) + perPage - 1) / perPage
	start := min((page-1)*perPage, len(items))
	end := min(start+perPage, len(items))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"errors":   []any{},
		"messages": []any{},
		"result":   items[start:end],
		"result_info": map[string]int{
			"page":        page,
			"per_page":    perPage,
			"count":       end - start,
			"total_count": len(items),
			"total_pages": totalPages,
		},
	})
}

func writeError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{
		"success":  false,
		"errors":   []map[string]any{{"code": code, "message": message}},
		"messages": []any{},
		"result":   nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
