package mockprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort    = 18080
	defaultDelayMS = 50
)

// unsafeMarkers are substrings that make the mock verdict come back unsafe.
// They let integration tests script both outcomes from plain transcripts.
var unsafeMarkers = []string{
	"UNSAFE_MARKER",
	"ignore all previous instructions",
	"napalm",
}

// StartMockObserver launches a lightweight OpenAI-compatible mock server
// that plays the role of the observer model. It inspects the transcript in
// the user message and returns a structured verdict: unsafe when any known
// marker appears, safe otherwise.
//
// If addr is empty, it listens on 127.0.0.1:MOCK_OBSERVER_PORT (default
// 18080). It returns a shutdown function and the base URL.
func StartMockObserver(addr string) (func(context.Context) error, string, error) {
	if strings.TrimSpace(addr) == "" {
		port := strings.TrimSpace(os.Getenv("MOCK_OBSERVER_PORT"))
		if port == "" {
			port = fmt.Sprintf("%d", defaultPort)
		}
		addr = "127.0.0.1:" + port
	}

	delay := defaultDelayMS
	if val := strings.TrimSpace(os.Getenv("MOCK_OBSERVER_DELAY_MS")); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			delay = parsed
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("mock observer request method=%s path=%s", r.Method, r.URL.Path)

		p := r.URL.Path
		if len(p) > 1 {
			p = strings.TrimSuffix(p, "/")
		}

		if r.Method == http.MethodPost && (p == "/v1/chat/completions" || p == "/chat/completions") {
			writeVerdict(w, r, delay)
			return
		}

		if r.Method == http.MethodGet && (p == "/v1/models" || p == "/models") {
			writeModels(w)
			return
		}

		writeNotFoundJSON(w)
	})

	srv := &http.Server{
		Handler: mux,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("mock observer server error: %v", err)
		}
	}()

	shutdown := func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}

	baseURL := "http://" + ln.Addr().String()
	log.Printf("mock observer listening on %s (delay_ms=%d)", baseURL, delay)
	return shutdown, baseURL, nil
}

type chatRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func writeNotFoundJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": "Not found",
			"type":    "invalid_request_error",
		},
	})
}

func writeVerdict(w http.ResponseWriter, r *http.Request, delayMS int) {
	if delayMS > 0 {
		time.Sleep(time.Duration(delayMS) * time.Millisecond)
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeNotFoundJSON(w)
		return
	}

	var transcript string
	for _, m := range req.Messages {
		if m.Role == "user" {
			transcript = m.Content
		}
	}

	verdict := verdictFor(transcript)

	resp := map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "mock-observer",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]string{
					"role":    "assistant",
					"content": verdict,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     5,
			"completion_tokens": 5,
			"total_tokens":      10,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// verdictFor builds the JSON verdict, wrapped in a code fence the way real
// models tend to reply.
func verdictFor(transcript string) string {
	lower := strings.ToLower(transcript)
	for _, marker := range unsafeMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return "```json\n" +
				`{"input_malicious": true, "ai_complied": true, "is_safe": false, "reasoning": "transcript contains a known unsafe marker"}` +
				"\n```"
		}
	}
	return "```json\n" +
		`{"input_malicious": false, "ai_complied": true, "is_safe": true, "reasoning": "benign exchange"}` +
		"\n```"
}

func writeModels(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data": []map[string]any{
			{
				"id":       "mock-observer",
				"object":   "model",
				"owned_by": "mock",
			},
		},
	})
}
