package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"

	"payment-webhook-service/internal/config"
)

const contentType = "application/json"

type sendRequest struct {
	Tokens       []string `json:"tokens"`
	Notification struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"notification"`
	Data map[string]string `json:"data"`
}

type sendError struct {
	Code string `json:"code"`
}

type sendResult struct {
	Token   string     `json:"token"`
	Success bool       `json:"success"`
	Error   *sendError `json:"error,omitempty"`
}

type sendResponse struct {
	Responses []sendResult `json:"responses"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Tokens prefixed with "dead-" are always unregistered. Every other token
// fails transiently with the configured percentage.
func main() {
	port := config.GetInt("PUSH_MOCK_PORT", 8085)
	errorRate := float64(config.GetInt("PUSH_MOCK_ERROR_PERCENT", 10)) / 100
	counter := newTokenCounter()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/send", func(w http.ResponseWriter, r *http.Request) {
		sendHandler(w, r, errorRate, counter)
	})
	mux.HandleFunc("POST /v1/send/always-fail", alwaysFailHandler)

	log.Printf("Push mock listening on :%d", port)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", port), loggingMiddleware(mux)))
}

func sendHandler(w http.ResponseWriter, r *http.Request, errorRate float64, counter *tokenCounter) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	counter.observe(req.Tokens)

	resp := sendResponse{Responses: make([]sendResult, 0, len(req.Tokens))}
	for _, token := range req.Tokens {
		switch {
		case strings.HasPrefix(token, "dead-"):
			resp.Responses = append(resp.Responses, sendResult{Token: token, Error: &sendError{Code: "UNREGISTERED"}})
		case rand.Float64() < errorRate:
			resp.Responses = append(resp.Responses, sendResult{Token: token, Error: &sendError{Code: "UNAVAILABLE"}})
		default:
			resp.Responses = append(resp.Responses, sendResult{Token: token, Success: true})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func alwaysFailHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal Server Error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
