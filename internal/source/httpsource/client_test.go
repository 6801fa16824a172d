package httpsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/fleetpulse/trackmap/pkg/core"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000", "secret123")

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected baseURL=http://localhost:5000, got %s", c.baseURL)
	}
	if c.apiKey != "secret123" {
		t.Errorf("expected apiKey=secret123, got %s", c.apiKey)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("expected path /healthcheck, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "")
	if err := c.Healthcheck(context.Background()); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	c := New("http://localhost:59999", "") // unlikely to be listening
	if err := c.Healthcheck(context.Background()); err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, "")
	if err := c.Healthcheck(context.Background()); err == nil {
		t.Error("expected error for 500 response")
	}
}

// trackServer serves n synthetic points for device "van-3".
func trackServer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/devices/van-3/points", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		points := []core.Point{}
		for i := offset; i < offset+limit && i < n; i++ {
			points = append(points, core.Point{Lat: float64(i), Lng: 1})
		}
		_ = json.NewEncoder(w).Encode(points)
	})
	mux.HandleFunc("/api/v1/devices/van-3/points/count", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(countResponse{Count: n})
	})
	return httptest.NewServer(mux)
}

func TestFetchChunk(t *testing.T) {
	server := trackServer(t, 15)
	defer server.Close()

	c := New(server.URL, "key")
	points, err := c.FetchChunk(context.Background(), "van-3", 10, 10)
	if err != nil {
		t.Fatalf("FetchChunk failed: %v", err)
	}
	if len(points) != 5 {
		t.Fatalf("expected 5 points, got %d", len(points))
	}
	if points[0].Lat != 10 {
		t.Errorf("expected first lat 10, got %v", points[0].Lat)
	}
}

func TestFetchChunk_Unauthorized(t *testing.T) {
	server := trackServer(t, 15)
	defer server.Close()

	c := New(server.URL, "wrong")
	if _, err := c.FetchChunk(context.Background(), "van-3", 0, 10); err == nil {
		t.Error("expected error for 401 response")
	}
}

func TestFetchChunk_BadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := New(server.URL, "")
	if _, err := c.FetchChunk(context.Background(), "van-3", 0, 10); err == nil {
		t.Error("expected decode error")
	}
}

func TestCountPoints(t *testing.T) {
	server := trackServer(t, 1200)
	defer server.Close()

	c := New(server.URL, "key")
	n, err := c.CountPoints(context.Background(), "van-3")
	if err != nil {
		t.Fatalf("CountPoints failed: %v", err)
	}
	if n != 1200 {
		t.Errorf("expected 1200, got %d", n)
	}
}
