package http

import (
	"net/http"
)

type calculationRequest struct {
	Operand1 *float64 `json:"operand1"`
	Operand2 *float64 `json:"operand2"`
}

type greetingRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateCalculation(w http.ResponseWriter, r *http.Request) {
	var req calculationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Operand1 == nil {
		s.fail(w, r, &paramError{Name: "operand1"})
		return
	}
	if req.Operand2 == nil {
		s.fail(w, r, &paramError{Name: "operand2"})
		return
	}
	c, err := s.history.Sum(r.Context(), *req.Operand1, *req.Operand2)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCalculations(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	calcs, err := s.history.RecentCalculations(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"calculations": calcs})
}

func (s *Server) handleCreateGreeting(w http.ResponseWriter, r *http.Request) {
	var req greetingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	g, err := s.history.Greet(r.Context(), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, g)
}

func (s *Server) handleListGreetings(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	greetings, err := s.history.RecentGreetings(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"greetings": greetings})
}
