package kv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(url, "secret").WithRetry(3, time.Millisecond)
}

func TestGet(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantValue string
		wantFound bool
		wantErr   bool
	}{
		{name: "string result", status: 200, body: `{"result":"NodeID-86ej"}`, wantValue: "NodeID-86ej", wantFound: true},
		{name: "null result", status: 200, body: `{"result":null}`},
		{name: "missing result", status: 200, body: `{}`},
		{name: "number result", status: 200, body: `{"result":42}`, wantValue: "42", wantFound: true},
		{name: "not found", status: 404, body: `{"error":"not found"}`},
		{name: "unauthorized", status: 401, body: `{"error":"unauthorized"}`, wantErr: true},
		{name: "malformed body", status: 200, body: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			value, found, err := newTestClient(srv.URL).Get(context.Background(), DefaultPrimaryKey)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestGetSendsBearerAndPath(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"result":"x"}`))
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL+"/").Get(context.Background(), "lastNodeAdded")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "/get/lastNodeAdded", gotPath)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"result":"NodeID-1"}`))
	}))
	defer srv.Close()

	value, found, err := newTestClient(srv.URL).Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "NodeID-1", value)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL).Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL).Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetNotConfigured(t *testing.T) {
	_, _, err := NewClient("", "").Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
