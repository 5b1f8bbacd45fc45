package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// The suite runs against a live server started with the seed data loaded
// (intakectl seed --reset). It is skipped unless INTAKE_E2E_URL is set.
var (
	baseURL   string
	authToken string
	client    = &http.Client{Timeout: 2 * time.Minute}
)

const seededPatientID = "PAT-1001"

type testResponse struct {
	StatusCode int
	Body       []byte
}

func (r testResponse) decode(t *testing.T, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(r.Body, dst); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, r.Body)
	}
}

func checkAPIServer() error {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

func TestMain(m *testing.M) {
	baseURL = os.Getenv("INTAKE_E2E_URL")
	if baseURL == "" {
		fmt.Println("INTAKE_E2E_URL not set; skipping end-to-end tests")
		os.Exit(0)
	}

	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		err := checkAPIServer()
		if err == nil {
			break
		}
		if i == maxRetries-1 {
			fmt.Printf("Error: %v\nMake sure the API server is running at %s\n", err, baseURL)
			os.Exit(1)
		}
		fmt.Printf("Waiting for API server (attempt %d/%d)...\n", i+1, maxRetries)
		time.Sleep(2 * time.Second)
	}

	if err := setupAuth(); err != nil {
		fmt.Printf("Failed to authenticate: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// setupAuth fetches a token when client credentials are provided. Servers
// running with auth disabled need none.
func setupAuth() error {
	id, secret := os.Getenv("INTAKE_E2E_CLIENT_ID"), os.Getenv("INTAKE_E2E_CLIENT_SECRET")
	if id == "" {
		return nil
	}

	resp, err := do(http.MethodPost, "/api/auth/token", map[string]string{
		"client_id":     id,
		"client_secret": secret,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Body)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return err
	}
	authToken = token.AccessToken
	return nil
}

func do(method, path string, body interface{}) (testResponse, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return testResponse{}, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return testResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return testResponse{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return testResponse{}, err
	}
	return testResponse{StatusCode: resp.StatusCode, Body: raw}, nil
}

func makeRequest(t *testing.T, method, path string, body interface{}) testResponse {
	t.Helper()
	resp, err := do(method, path, body)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// requireLLM skips tests that call the model unless explicitly enabled.
func requireLLM(t *testing.T) {
	t.Helper()
	if os.Getenv("INTAKE_E2E_LLM") == "" {
		t.Skip("INTAKE_E2E_LLM not set")
	}
}
