package serviced

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPRegistrar registers exported modules with a transactional runtime
// through its admin endpoint. The registration call blocks until the runtime
// answers; there is no timeout beyond what the supplied client carries.
type HTTPRegistrar struct {
	baseURL string
	client  *http.Client
	logger  Logger
}

// NewHTTPRegistrar creates a registrar against the runtime admin endpoint at
// baseURL. A nil client falls back to http.DefaultClient.
func NewHTTPRegistrar(baseURL string, client *http.Client, logger Logger) *HTTPRegistrar {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRegistrar{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Register implements RuntimeRegistrar by posting the descriptor to the
// runtime's registration resource. A non-2xx answer is a registration
// failure; the runtime's warnings travel back in the result body.
func (r *HTTPRegistrar) Register(ctx context.Context, descriptor RegistrationDescriptor) (*RegistrationResult, error) {
	body, err := json.Marshal(descriptor)
	if err != nil {
		return nil, fmt.Errorf("encoding registration descriptor: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/applications/register", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: runtime answered %d: %s", ErrRegistrationFailed, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var result RegistrationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding registration result: %w", err)
	}

	for _, warning := range result.Warnings {
		r.logger.Warn("registration warning", "application", descriptor.ApplicationName, "warning", warning)
	}
	return &result, nil
}
