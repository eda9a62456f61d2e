package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dTxn/rpc/common"
	"github.com/ValentinKolb/dTxn/rpc/transport"
)

func NewHttpClientTransport() transport.IDocClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    uint32
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IDocClientTransport)
// --------------------------------------------------------------------------

func (transport *httpClientTransport) Connect(config common.ClientConfig) error {
	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Endpoints))
	for i, server := range config.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(strings.TrimRight(server, "/"))
		if err != nil {
			return err
		}
		parsedURLs[i] = parsedURL
	}

	idleConns := config.ConnectionsPerEndpoint
	if idleConns < 1 {
		idleConns = 10
	}

	// Create client with default transport
	client := &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: idleConns,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Set the client and server URLs
	transport.client = client
	transport.serverURLs = parsedURLs
	transport.counter = 0
	transport.retryCount = max(1, config.RetryCount)

	// No error
	return nil
}

func (transport *httpClientTransport) Do(ctx context.Context, method, uri string, body []byte) (status int, resp []byte, err error) {
	// Check if the transport is initialized
	if transport.client == nil {
		return 0, nil, fmt.Errorf("http transport not initialized")
	}

	target, err := transport.resolve(uri)
	if err != nil {
		return 0, nil, err
	}

	// Send the request (with retries on transport errors, never on a received status)
	var httpResponse *http.Response
	defer func() {
		if httpResponse != nil {
			if err := httpResponse.Body.Close(); err != nil {
				Logger.Errorf("Failed to close response body: %v", err)
			}
		}
	}()
	for i := 0; i < transport.retryCount; i++ {
		var httpRequest *http.Request
		httpRequest, err = http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		httpRequest.Header.Set("Accept", "application/json")
		if body != nil {
			httpRequest.Header.Set("Content-Type", "application/json")
		}

		httpResponse, err = transport.client.Do(httpRequest)
		if err == nil || ctx.Err() != nil {
			break
		}
		Logger.Warningf("%s %s failed (try %d/%d): %v", method, target, i+1, transport.retryCount, err)
	}
	if err != nil {
		return 0, nil, err
	}

	// Read the response body
	resp, err = io.ReadAll(httpResponse.Body)
	if err != nil {
		return 0, nil, err
	}
	return httpResponse.StatusCode, resp, nil
}

func (transport *httpClientTransport) Close() error {
	// Close the client
	if transport.client != nil {
		transport.client.CloseIdleConnections()
	}

	// Reset the client and server URLs
	transport.client = nil
	transport.serverURLs = nil

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// resolve turns a path into an absolute url by selecting the next server via round-robin
func (transport *httpClientTransport) resolve(uri string) (string, error) {
	if !strings.HasPrefix(uri, "/") {
		return uri, nil
	}
	if len(transport.serverURLs) == 0 {
		return "", fmt.Errorf("no endpoint configured for relative uri %s", uri)
	}
	idx := atomic.AddUint32(&transport.counter, 1) % uint32(len(transport.serverURLs))
	return transport.serverURLs[idx].String() + uri, nil
}
