package twse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketgrid/harvester/internal/common"
)

func TestFetchMonth_RequestShape(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{
			"response": r.URL.Query().Get("response"),
			"date":     r.URL.Query().Get("date"),
			"stockNo":  r.URL.Query().Get("stockNo"),
			"_":        r.URL.Query().Get("_"),
		}
		w.Write([]byte(`{"stat":"OK","data":[]}`))
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithRateLimit(100),
		WithTimeout(5*time.Second),
	)

	body, err := client.FetchMonth(context.Background(), "2330", "202405", 1234567890123)
	require.NoError(t, err)
	assert.Equal(t, `{"stat":"OK","data":[]}`, body)

	assert.Equal(t, "/exchangeReport/STOCK_DAY", gotPath)
	assert.Equal(t, "json", gotQuery["response"])
	assert.Equal(t, "20240501", gotQuery["date"])
	assert.Equal(t, "2330", gotQuery["stockNo"])
	assert.Equal(t, "1234567890123", gotQuery["_"])
}

func TestFetchMonth_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(100))

	_, err := client.FetchMonth(context.Background(), "2330", "202405", 1)
	require.Error(t, err)
	assert.True(t, common.IsTransient(err))
}

func TestFetchMonth_ConnectionRefusedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(100), WithTimeout(time.Second))

	_, err := client.FetchMonth(context.Background(), "2330", "202405", 1)
	require.Error(t, err)
	assert.True(t, common.IsTransient(err))
}

func TestFetchMonth_ContextCancelled(t *testing.T) {
	client := NewClient(WithRateLimit(100))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchMonth(ctx, "2330", "202405", 1)
	require.Error(t, err)
}
