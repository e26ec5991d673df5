package main

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"sync"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	lrw.body.Write(b)
	return lrw.ResponseWriter.Write(b)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var requestBody bytes.Buffer
		body, err := io.ReadAll(io.TeeReader(r.Body, &requestBody))
		if err != nil {
			log.Printf("Error reading request body: %v", err)
		}
		r.Body = io.NopCloser(&requestBody)
		log.Printf("Request %s %s: %s", r.Method, r.URL.Path, body)

		lrw := &loggingResponseWriter{ResponseWriter: w, body: &bytes.Buffer{}}
		next.ServeHTTP(lrw, r)

		log.Printf("Response Body: %s", lrw.body.String())
	})
}

// tokenCounter remembers how often each token was pushed so repeated
// notifications for the same sale show up in the log.
type tokenCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newTokenCounter() *tokenCounter {
	return &tokenCounter{counts: make(map[string]int)}
}

func (c *tokenCounter) observe(tokens []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tokens {
		c.counts[t]++
		if c.counts[t] > 1 {
			log.Printf("Token %s has received %d pushes", t, c.counts[t])
		}
	}
}
