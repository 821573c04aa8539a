package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/kgview/internal/model"
)

// HTTPClient implements API against the backend's HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://127.0.0.1:8000/api"). When token is non-empty, an
// Authorization header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Search ---

func (c *HTTPClient) Search(ctx context.Context, keyword string) ([]SearchResult, error) {
	var resp struct {
		Results []SearchResult `json:"results"`
	}
	q := url.Values{"q": {keyword}}
	if err := c.doJSON(ctx, "search", http.MethodGet, "/search/?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// --- Graphs ---

func (c *HTTPClient) Upload(ctx context.Context, filename string, content io.Reader, userID string) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.WriteField("user_id", userID); err != nil {
		return nil, fmt.Errorf("writing form field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	var result UploadResult
	if err := c.do(ctx, "upload", http.MethodPost, "/upload-file/", mw.FormDataContentType(), &buf, &result); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		msg := result.Message
		if msg == "" {
			msg = "upload failed"
		}
		return nil, &model.NetworkError{Op: "upload", Message: msg}
	}
	return &result, nil
}

func (c *HTTPClient) FetchGraph(ctx context.Context, graphID string) (*model.Graph, error) {
	var g model.Graph
	q := url.Values{"graph_id": {graphID}}
	if err := c.doJSON(ctx, "fetch graph", http.MethodGet, "/graph/?"+q.Encode(), nil, &g); err != nil {
		return nil, err
	}
	if g.GraphID == "" {
		g.GraphID = graphID
	}
	return &g, nil
}

func (c *HTTPClient) ListUserGraphIDs(ctx context.Context, userID string) ([]string, error) {
	var resp struct {
		GraphIDs []string `json:"graph_ids"`
	}
	q := url.Values{"user_id": {userID}}
	if err := c.doJSON(ctx, "list graphs", http.MethodGet, "/user-graphs/?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.GraphIDs, nil
}

func (c *HTTPClient) ListUserGraphs(ctx context.Context, userID string) ([]*model.Graph, error) {
	var graphs []*model.Graph
	q := url.Values{"user_id": {userID}}
	if err := c.doJSON(ctx, "list graphs", http.MethodGet, "/user-graphs/all/?"+q.Encode(), nil, &graphs); err != nil {
		return nil, err
	}
	return graphs, nil
}

func (c *HTTPClient) DeleteGraph(ctx context.Context, graphID string) (string, error) {
	q := url.Values{"graph_id": {graphID}}
	return c.doMessage(ctx, "delete graph", http.MethodDelete, "/graph/?"+q.Encode(), nil)
}

func (c *HTTPClient) DeleteUserGraphs(ctx context.Context, userID string) (string, error) {
	q := url.Values{"user_id": {userID}}
	return c.doMessage(ctx, "delete user graphs", http.MethodDelete, "/user-graphs/?"+q.Encode(), nil)
}

func (c *HTTPClient) ExportGraph(ctx context.Context, graphID string) ([]byte, error) {
	q := url.Values{"graph_id": {graphID}, "download": {"true"}}
	var raw bytes.Buffer
	if err := c.do(ctx, "export", http.MethodGet, "/export/?"+q.Encode(), "", nil, &raw); err != nil {
		return nil, err
	}
	return raw.Bytes(), nil
}

// --- Nodes ---

func (c *HTTPClient) DeleteNode(ctx context.Context, graphID, nodeID string) (string, error) {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	q := url.Values{"graph_id": {graphID}, "node_id": {nodeID}}
	if err := c.doJSON(ctx, "delete node", http.MethodDelete, "/delete-node/?"+q.Encode(), nil, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &model.NetworkError{Op: "delete node", Message: resp.Message}
	}
	return resp.Message, nil
}

func (c *HTTPClient) AddNode(ctx context.Context, req *AddNodeRequest) (*AddNodeResult, error) {
	var result AddNodeResult
	if err := c.doJSON(ctx, "add node", http.MethodPost, "/add-node/", req, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, &model.NetworkError{Op: "add node", Message: result.Message}
	}
	return &result, nil
}

// --- Users ---

func (c *HTTPClient) DeleteUser(ctx context.Context, userID, password string) (string, error) {
	body := map[string]string{"user_id": userID, "password": password}
	return c.doMessage(ctx, "delete user", http.MethodPost, "/delete-user/", body)
}

// --- internal helpers ---

func (c *HTTPClient) doMessage(ctx context.Context, op, method, path string, body any) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, op, method, path, body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the
// JSON response. If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, op, method, path string, body any, result any) error {
	var bodyReader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, op, method, path, contentType, bodyReader, result)
}

// do performs the request. A *bytes.Buffer result receives the raw body;
// any other non-nil result is JSON-decoded. Transport failures and
// statuses >= 400 are returned as *model.NetworkError.
func (c *HTTPClient) do(ctx context.Context, op, method, path, contentType string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return &model.NetworkError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	switch r := result.(type) {
	case nil:
	case *bytes.Buffer:
		r.Write(respBody)
	default:
		if err := json.Unmarshal(respBody, result); err != nil {
			return &model.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return nil
}

// errorMessage extracts the server's error text from a response body,
// preferring the "error" field, then "message", then the raw text.
func errorMessage(body []byte) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error != "" {
			return errResp.Error
		}
		if errResp.Message != "" {
			return errResp.Message
		}
	}
	return strings.TrimSpace(string(body))
}
