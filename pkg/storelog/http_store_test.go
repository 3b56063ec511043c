/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package storelog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleLog() Log {
	return Log{
		LogID:    "log-1",
		System:   System{SystemID: "SE123"},
		Activity: Activity{ActivityType: "READ", Purpose: "CARE_TREATMENT", StartDate: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		User:     User{UserID: "user-1"},
		Resources: []Resource{{
			ResourceType: "journal",
			Patient:      Patient{PatientID: PatientID{Root: "1.2.752.129.2.1.3.1", Extension: "191212121212"}},
		}},
	}
}

func TestHTTPStore_PostsRequest(t *testing.T) {
	var got Request
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storelog", r.URL.Path)
		userAgent = r.Header.Get("User-Agent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resultCode":"OK"}`))
	}))
	defer srv.Close()

	store, err := NewHTTPStore(HTTPStoreConfig{Endpoint: srv.URL + "/", Timeout: time.Second}, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := store.StoreLog(context.Background(), "SE-ADDR", []Log{sampleLog()})
	require.NoError(t, err)
	assert.Equal(t, ResultOK, res.ResultCode)

	assert.Equal(t, "SE-ADDR", got.LogicalAddress)
	require.Len(t, got.Logs, 1)
	assert.Equal(t, "log-1", got.Logs[0].LogID)
	assert.Equal(t, "191212121212", got.Logs[0].Resources[0].Patient.PatientID.Extension)
	assert.Contains(t, userAgent, "auditlog-forwarder/")
}

func TestHTTPStore_ResultCodesPassThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resultCode":"VALIDATION_ERROR","resultText":"bad patient"}`))
	}))
	defer srv.Close()

	store, err := NewHTTPStore(HTTPStoreConfig{Endpoint: srv.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := store.StoreLog(context.Background(), "addr", []Log{sampleLog()})
	require.NoError(t, err)
	assert.Equal(t, ResultValidationError, res.ResultCode)
	assert.Equal(t, "bad patient", res.ResultText)
}

func TestHTTPStore_ErrorStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store, err := NewHTTPStore(HTTPStoreConfig{Endpoint: srv.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = store.StoreLog(context.Background(), "addr", []Log{sampleLog()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPStore_UnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store, err := NewHTTPStore(HTTPStoreConfig{Endpoint: url, Timeout: 500 * time.Millisecond}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = store.StoreLog(context.Background(), "addr", []Log{sampleLog()})
	assert.Error(t, err)
}

func TestNewHTTPStore_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewHTTPStore(HTTPStoreConfig{}, logger)
	assert.Error(t, err)

	_, err = NewHTTPStore(HTTPStoreConfig{Endpoint: "https://store", CAFile: "/nonexistent/ca.pem"}, logger)
	assert.ErrorContains(t, err, "CA file")

	_, err = NewHTTPStore(HTTPStoreConfig{Endpoint: "https://store", CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}, logger)
	assert.ErrorContains(t, err, "client certificate")
}

func TestUnitOmittedWhenNil(t *testing.T) {
	data, err := json.Marshal(User{UserID: "u"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "careUnit")
}
