package health

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/guidebot/core/config"
)

func testConfig() coreconfig.HealthConfig {
	return coreconfig.HealthConfig{Listen: "127.0.0.1", Port: 8080, Path: "/health"}
}

func TestHealthReturnsAlive(t *testing.T) {
	s := New(testConfig())
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, Body, string(body))
}

func TestUnknownPathIsNotFound(t *testing.T) {
	s := New(testConfig())
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", New(testConfig()).Addr())
	assert.Equal(t, ":9000", New(coreconfig.HealthConfig{Port: 9000, Path: "/health"}).Addr())
}

func TestRunStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := testConfig()
	cfg.Port = port
	s := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + s.Addr() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
