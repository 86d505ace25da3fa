package indexing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/pkg/retry"
)

// Client talks to the managed indexing vendor. Each agent owns one pipeline;
// documents are uploaded as vendor files and attached to the agent's
// pipeline, and queries run a similarity search against it.
type Client struct {
	baseURL     string
	apiKey      string
	projectName string
	httpClient  *http.Client
	retryCfg    retry.Config
}

// NewClient creates a new indexing API client
func NewClient(baseURL, apiKey, projectName string) *Client {
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		projectName: projectName,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		retryCfg:    retry.DefaultConfig(),
	}
}

type pipeline struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EnsurePipeline returns the pipeline id for an agent, creating the pipeline
// on first use. Pipeline names are derived from the agent id so lookups are
// deterministic across instances.
func (c *Client) EnsurePipeline(ctx context.Context, agentID string) (string, error) {
	name := fmt.Sprintf("agent-%s", agentID)

	existing, err := c.findPipeline(ctx, name)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"name": name,
	})

	body, err := c.do(ctx, http.MethodPost, "/api/v1/pipelines", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create pipeline: %w", err)
	}

	var p pipeline
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("failed to parse pipeline response: %w", err)
	}

	return p.ID, nil
}

func (c *Client) findPipeline(ctx context.Context, name string) (string, error) {
	path := fmt.Sprintf("/api/v1/pipelines?pipeline_name=%s", name)
	if c.projectName != "" {
		path += "&project_name=" + c.projectName
	}

	body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return "", fmt.Errorf("failed to list pipelines: %w", err)
	}

	var pipelines []pipeline
	if err := json.Unmarshal(body, &pipelines); err != nil {
		return "", fmt.Errorf("failed to parse pipeline list: %w", err)
	}

	for _, p := range pipelines {
		if p.Name == name {
			return p.ID, nil
		}
	}

	return "", nil
}

// UploadFile uploads raw document content as a vendor file and returns the
// vendor file id.
func (c *Client) UploadFile(ctx context.Context, name string, content []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("upload_file", name)
	if err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/files", w.FormDataContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}

	return resp.ID, nil
}

// AttachFile adds an uploaded vendor file to a pipeline for ingestion.
func (c *Client) AttachFile(ctx context.Context, pipelineID, fileID string) error {
	payload, _ := json.Marshal([]map[string]string{{"file_id": fileID}})

	path := fmt.Sprintf("/api/v1/pipelines/%s/files", pipelineID)
	if _, err := c.do(ctx, http.MethodPut, path, "application/json", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("failed to attach file to pipeline: %w", err)
	}

	return nil
}

// FileStatus reports ingestion state for a pipeline file, including how
// many chunks the vendor split the document into.
type FileStatus struct {
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
}

// GetFileStatus fetches the ingestion status of a file attached to a
// pipeline.
func (c *Client) GetFileStatus(ctx context.Context, pipelineID, fileID string) (*FileStatus, error) {
	path := fmt.Sprintf("/api/v1/pipelines/%s/files/%s/status", pipelineID, fileID)
	body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get file status: %w", err)
	}

	var status FileStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse file status: %w", err)
	}

	return &status, nil
}

// DeleteFile detaches a file from the pipeline and deletes the vendor file,
// removing its chunks from the index.
func (c *Client) DeleteFile(ctx context.Context, pipelineID, fileID string) error {
	path := fmt.Sprintf("/api/v1/pipelines/%s/files/%s", pipelineID, fileID)
	if _, err := c.do(ctx, http.MethodDelete, path, "", nil); err != nil {
		return fmt.Errorf("failed to delete pipeline file: %w", err)
	}

	path = fmt.Sprintf("/api/v1/files/%s", fileID)
	if _, err := c.do(ctx, http.MethodDelete, path, "", nil); err != nil {
		return fmt.Errorf("failed to delete vendor file: %w", err)
	}

	return nil
}

// Retrieve runs a similarity search against a pipeline.
func (c *Client) Retrieve(ctx context.Context, pipelineID, query string, topK int) ([]domain.KnowledgeChunk, error) {
	if topK <= 0 {
		topK = 5
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"query":                  query,
		"dense_similarity_top_k": topK,
	})

	path := fmt.Sprintf("/api/v1/pipelines/%s/retrieve", pipelineID)
	body, err := c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve from pipeline: %w", err)
	}

	var resp struct {
		RetrievalNodes []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
			Score float64 `json:"score"`
		} `json:"retrieval_nodes"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse retrieval response: %w", err)
	}

	chunks := make([]domain.KnowledgeChunk, 0, len(resp.RetrievalNodes))
	for _, n := range resp.RetrievalNodes {
		chunks = append(chunks, domain.KnowledgeChunk{
			Text:  n.Node.Text,
			Score: n.Score,
		})
	}

	return chunks, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, reqBody io.Reader) ([]byte, error) {
	// Multipart bodies are not replayable, so buffer them once up front.
	var bodyBytes []byte
	if reqBody != nil {
		var err error
		bodyBytes, err = io.ReadAll(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to buffer request body: %w", err)
		}
	}

	var body []byte
	err := retry.Do(ctx, c.retryCfg, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
		defer cancel()

		var r io.Reader
		if bodyBytes != nil {
			r = bytes.NewReader(bodyBytes)
		}

		httpReq, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, r)
		if err != nil {
			return retry.Stop(fmt.Errorf("failed to create request: %w", err))
		}

		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		if contentType != "" {
			httpReq.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("indexing API returned %d: %s", resp.StatusCode, string(respBody))
		}
		if resp.StatusCode >= 400 {
			return retry.Stop(fmt.Errorf("indexing API returned %d: %s", resp.StatusCode, string(respBody)))
		}

		body = respBody
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}
