// Package scanapi is the client of the remote SBOM scan service: it
// registers scans, uploads SBOMs and queries scan status.
package scanapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/daimoniac/sbomscan/internal/errors"
	"github.com/daimoniac/sbomscan/internal/httpclient"
	"github.com/daimoniac/sbomscan/internal/sbom"
)

// Gateway defines the operations of the scan service
type Gateway interface {
	// StartScan registers a scan and returns where to upload the SBOM
	StartScan(ctx context.Context, req ScanRequest) (*ScanHandle, error)

	// UploadSBOM puts the artifact to the upload URL of a scan
	UploadSBOM(ctx context.Context, uploadURL string, artifact *sbom.Artifact) error

	// GetScanStatus returns the current outcome of a scan
	GetScanStatus(ctx context.Context, scanID string) (ScanOutcome, error)
}

// Client implements Gateway over HTTP
type Client struct {
	baseURL string
	token   string
	http    *httpclient.Client
	logger  *slog.Logger
}

// NewClient creates a scan service client. All requests share client, and
// therefore its timeout and retry budget.
func NewClient(baseURL, token string, client *httpclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    client,
		logger:  logger,
	}
}

func (c *Client) authHeaders() map[string]string {
	return map[string]string{
		"accept":        "application/json",
		"Authorization": "Bearer " + c.token,
		"Content-Type":  "application/json",
	}
}

// StartScan registers a scan with the scan service
func (c *Client) StartScan(ctx context.Context, req ScanRequest) (*ScanHandle, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewAPIError(0, err.Error())
	}

	resp, err := c.http.Execute(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/v1/sbom/scan/upload",
		Headers: c.authHeaders(),
		Body:    body,
	})
	if err != nil {
		return nil, err
	}

	var handle ScanHandle
	if resp.Body == nil || json.Unmarshal(resp.Body, &handle) != nil || handle.ScanID == "" || handle.UploadURL == "" {
		return nil, errors.NewAPIError(resp.StatusCode, "invalid start scan response")
	}

	c.logger.Debug("scan registered", "scan_id", handle.ScanID)
	return &handle, nil
}

// UploadSBOM uploads the artifact bytes verbatim. The upload URL is
// pre-signed, so no Authorization header is sent.
func (c *Client) UploadSBOM(ctx context.Context, uploadURL string, artifact *sbom.Artifact) error {
	_, err := c.http.Execute(ctx, httpclient.Request{
		Method:  http.MethodPut,
		URL:     uploadURL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    artifact.Bytes(),
	})
	return err
}

// GetScanStatus queries the status of a scan
func (c *Client) GetScanStatus(ctx context.Context, scanID string) (ScanOutcome, error) {
	resp, err := c.http.Execute(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + "/v1/sbom/scan/" + url.PathEscape(scanID) + "/status",
		Headers: c.authHeaders(),
	})
	if err != nil {
		return nil, err
	}

	var status statusResponse
	if resp.Body == nil || json.Unmarshal(resp.Body, &status) != nil {
		return nil, errors.NewAPIError(resp.StatusCode, "invalid scan status response")
	}

	return status.outcome(), nil
}
