package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// ErrFileNotFound marks a remote file handle the store no longer recognizes
// (expired, deleted, or never owned). Callers classify with errors.Is instead
// of sniffing response text.
var ErrFileNotFound = errors.New("remote file not found")

// FinishReasonStop is the normal completion reason; anything else means the
// generation was cut short or blocked.
const FinishReasonStop = "STOP"

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// FileRef is the remote store's view of an uploaded file.
type FileRef struct {
	Name           string
	URI            string
	MimeType       string
	ExpirationTime time.Time
}

type GenerateInput struct {
	SystemInstruction string
	Files             []FileRef
	Query             string
}

type GenerateResult struct {
	Text         string
	FinishReason string
}

type GeminiClient struct {
	httpClient *http.Client
	cfg        Config
}

func NewGeminiClient(cfg Config) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		cfg:        cfg,
	}
}

type fileWire struct {
	Name           string `json:"name"`
	URI            string `json:"uri"`
	MimeType       string `json:"mimeType"`
	ExpirationTime string `json:"expirationTime"`
}

func (w fileWire) toRef() *FileRef {
	ref := &FileRef{
		Name:     w.Name,
		URI:      w.URI,
		MimeType: w.MimeType,
	}
	if t, err := time.Parse(time.RFC3339, w.ExpirationTime); err == nil {
		ref.ExpirationTime = t
	}
	return ref
}

// UploadFile pushes raw bytes into the remote file store. The store retains
// uploads for roughly 48 hours.
func (c *GeminiClient) UploadFile(ctx context.Context, data []byte, displayName, mimeType string) (*FileRef, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("build upload metadata part failed: %w", err)
	}
	meta := map[string]interface{}{
		"file": map[string]string{"display_name": displayName},
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, fmt.Errorf("encode upload metadata failed: %w", err)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", mimeType)
	filePart, err := writer.CreatePart(fileHeader)
	if err != nil {
		return nil, fmt.Errorf("build upload file part failed: %w", err)
	}
	if _, err := filePart.Write(data); err != nil {
		return nil, fmt.Errorf("write upload file part failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload body failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/upload/v1beta/files?uploadType=multipart&key=" + c.cfg.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request failed: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upload status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		File fileWire `json:"file"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse upload response failed: %w", err)
	}
	if parsed.File.Name == "" {
		return nil, fmt.Errorf("upload response missing file name")
	}
	return parsed.File.toRef(), nil
}

// GetFile fetches the current remote state of a handle. A 403 or 404 comes
// back as ErrFileNotFound; the store answers 403 for expired files it has
// already forgotten, so both are the same signal to callers.
func (c *GeminiClient) GetFile(ctx context.Context, name string) (*FileRef, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1beta/" + name + "?key=" + c.cfg.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build get file request failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get file request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read get file response failed: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("get file %s status %d: %w", name, resp.StatusCode, ErrFileNotFound)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("get file status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed fileWire
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse get file response failed: %w", err)
	}
	return parsed.toRef(), nil
}

func (c *GeminiClient) DeleteFile(ctx context.Context, name string) error {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1beta/" + name + "?key=" + c.cfg.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("build delete file request failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete file request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete file status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

func (c *GeminiClient) generateBody(in GenerateInput) ([]byte, error) {
	parts := make([]map[string]interface{}, 0, len(in.Files)+1)
	for _, f := range in.Files {
		parts = append(parts, map[string]interface{}{
			"file_data": map[string]string{
				"file_uri":  f.URI,
				"mime_type": f.MimeType,
			},
		})
	}
	parts = append(parts, map[string]interface{}{"text": in.Query})

	reqBody := map[string]interface{}{
		"system_instruction": map[string]interface{}{
			"parts": []map[string]string{{"text": in.SystemInstruction}},
		},
		"contents": []map[string]interface{}{
			{"role": "user", "parts": parts},
		},
		// Block only high-severity categories so ordinary business documents
		// are not over-filtered.
		"safetySettings": []map[string]string{
			{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_ONLY_HIGH"},
			{"category": "HARM_CATEGORY_HATE_SPEECH", "threshold": "BLOCK_ONLY_HIGH"},
			{"category": "HARM_CATEGORY_SEXUALLY_EXPLICIT", "threshold": "BLOCK_ONLY_HIGH"},
			{"category": "HARM_CATEGORY_DANGEROUS_CONTENT", "threshold": "BLOCK_ONLY_HIGH"},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request failed: %w", err)
	}
	return payload, nil
}

type candidateWire struct {
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

func (cand candidateWire) text() string {
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Generate runs a buffered grounded-generation call. An empty result with no
// candidates is not an error here; the caller decides how to phrase it.
func (c *GeminiClient) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	payload, err := c.generateBody(in)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1beta/models/" + c.cfg.Model + ":generateContent?key=" + c.cfg.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build generate request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generate response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("generate status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Candidates []candidateWire `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse generate response failed: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return &GenerateResult{}, nil
	}
	return &GenerateResult{
		Text:         parsed.Candidates[0].text(),
		FinishReason: parsed.Candidates[0].FinishReason,
	}, nil
}

// GenerateStream opens the generation call in incremental-delivery mode and
// forwards each text delta to onChunk in order. A non-nil error from onChunk
// aborts the stream.
func (c *GeminiClient) GenerateStream(
	ctx context.Context,
	in GenerateInput,
	onChunk func(chunk string) error,
) error {
	payload, err := c.generateBody(in)
	if err != nil {
		return err
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1beta/models/" + c.cfg.Model + ":streamGenerateContent?alt=sse&key=" + c.cfg.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build stream generate request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stream generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("stream generate status %d: %s", resp.StatusCode, string(raw))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var chunk struct {
			Candidates []candidateWire `json:"candidates"`
		}
		if err := json.Unmarshal([]byte(body), &chunk); err != nil {
			continue
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		text := chunk.Candidates[0].text()
		if text == "" {
			continue
		}
		if err := onChunk(text); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan generate stream failed: %w", err)
	}
	return nil
}
