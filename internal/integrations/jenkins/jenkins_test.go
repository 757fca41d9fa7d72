package jenkins

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDispatcher_Dispatch(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		location     string
		body         string
		expected     string
		expectedCode int
	}{
		{name: "accepted", status: http.StatusCreated, location: "https://jenkins/queue/item/1/", expected: "https://jenkins/queue/item/1/"},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", expectedCode: http.StatusInternalServerError},
		{name: "ok is not accepted", status: http.StatusOK, location: "https://jenkins/queue/item/1/", expectedCode: http.StatusOK},
		{name: "created without location", status: http.StatusCreated, expectedCode: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery map[string][]string
			var gotKey string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.Query()
				gotKey = r.Header.Get("apikey")
				if tt.location != "" {
					w.Header().Set("Location", tt.location)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			d := NewDispatcher("secret", time.Second)
			got, err := d.Dispatch(context.Background(), srv.URL+"/job/create/buildWithParameters", map[string]interface{}{
				"subdomain":   "acme",
				"geonode_env": "staging",
			})

			assert.Equal(t, "secret", gotKey)
			assert.Equal(t, "acme", gotQuery["subdomain"][0])
			assert.Equal(t, "staging", gotQuery["geonode_env"][0])
			if tt.expected != "" {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, got)
				return
			}

			var dispatchErr *DispatchError
			require.True(t, errors.As(err, &dispatchErr))
			assert.Equal(t, tt.expectedCode, dispatchErr.StatusCode)
			assert.Equal(t, tt.body, dispatchErr.Body)
		})
	}
}

func TestDispatcher_MissingAPIKey(t *testing.T) {
	d := NewDispatcher("", time.Second)
	_, err := d.Dispatch(context.Background(), "http://127.0.0.1:1/job", nil)
	var dispatchErr *DispatchError
	require.True(t, errors.As(err, &dispatchErr))
	assert.Contains(t, err.Error(), "proxy api key")
}

func TestDispatcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := NewDispatcher("secret", time.Second)
	_, err := d.Dispatch(context.Background(), url+"/job", nil)
	var dispatchErr *DispatchError
	require.True(t, errors.As(err, &dispatchErr))
	assert.Equal(t, 0, dispatchErr.StatusCode)
}
