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
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/version"
)

// HTTPStoreConfig configures an HTTPStore.
type HTTPStoreConfig struct {
	// Endpoint is the base URL; calls go to {Endpoint}/storelog.
	Endpoint string
	// Timeout bounds a single call.
	// Default: 30s
	Timeout time.Duration

	CAFile             string
	CertFile           string
	KeyFile            string
	InsecureSkipVerify bool
}

// HTTPStore calls the log store over HTTPS with a JSON body.
type HTTPStore struct {
	client   *resty.Client
	endpoint string
	logger   *zap.Logger
}

// NewHTTPStore builds the client, loading TLS material if configured.
func NewHTTPStore(cfg HTTPStoreConfig, logger *zap.Logger) (*HTTPStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("store endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	tlsConfig, err := loadTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetTLSClientConfig(tlsConfig).
		SetHeader("User-Agent", version.UserAgent()).
		SetHeader("Accept", "application/json")

	logger.Named("storelog").Info("HTTP log store client created",
		zap.String("endpoint", endpoint),
		zap.Duration("timeout", timeout),
		zap.Bool("client_cert", cfg.CertFile != ""))

	return &HTTPStore{client: client, endpoint: endpoint, logger: logger.Named("storelog")}, nil
}

// StoreLog posts logs in a single request. Network failures and non-2xx
// statuses are returned as errors.
func (s *HTTPStore) StoreLog(ctx context.Context, logicalAddress string, logs []Log) (Result, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(Request{LogicalAddress: logicalAddress, Logs: logs}).
		SetResult(&Result{}).
		Post("/storelog")
	if err != nil {
		return Result{}, fmt.Errorf("store call to %s failed: %w", s.endpoint, err)
	}
	if resp.IsError() {
		s.logger.Debug("store returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("logs", len(logs)))
		return Result{}, fmt.Errorf("store %s returned status %d", s.endpoint, resp.StatusCode())
	}

	result, ok := resp.Result().(*Result)
	if !ok || result == nil {
		return Result{}, nil
	}
	return *result, nil
}

func loadTLSConfig(cfg HTTPStoreConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // Configurable for testing
	}
	if cfg.CAFile != "" {
		data, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read store CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("failed to parse store CA file")
		}
		tlsConfig.RootCAs = pool
	}
	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load store client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}
