package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	// Files the monitor has historically written its state under, in lookup order.
	GistStateFile   = "review_state.json"
	GistDefaultFile = "gistfile1.txt"
)

// Gist keeps the document in one file of a GitHub Gist.
type Gist struct {
	apiURL   string
	gistID   string
	token    string
	client   *http.Client
	mu       sync.Mutex
	fileName string // fixed by config or detected on first read
}

var _ Blob = (*Gist)(nil)

// NewGist builds a gist-backed blob. An empty fileName is detected on read.
func NewGist(apiURL, gistID, token, fileName string) *Gist {
	return &Gist{
		apiURL:   apiURL,
		gistID:   gistID,
		token:    token,
		fileName: fileName,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type gistFile struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

type gistDocument struct {
	Files map[string]*gistFile `json:"files"`
}

func (g *Gist) Read(ctx context.Context) ([]byte, error) {
	req, err := g.newRequest(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gist read: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrBlobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gist read: unexpected status %s", resp.Status)
	}

	var doc gistDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("gist read: decode: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	name := g.fileName
	if name == "" {
		name = GistDefaultFile
		if _, ok := doc.Files[GistStateFile]; ok {
			name = GistStateFile
		}
		g.fileName = name
	}

	file, ok := doc.Files[name]
	if !ok || file == nil {
		return nil, ErrBlobNotFound
	}
	if file.Truncated {
		return nil, fmt.Errorf("gist read: file %s is truncated", name)
	}
	return []byte(file.Content), nil
}

func (g *Gist) Write(ctx context.Context, content []byte) error {
	g.mu.Lock()
	name := g.fileName
	if name == "" {
		name = GistDefaultFile
	}
	g.mu.Unlock()

	body, err := json.Marshal(gistDocument{Files: map[string]*gistFile{name: {Content: string(content)}}})
	if err != nil {
		return fmt.Errorf("gist write: encode: %w", err)
	}

	req, err := g.newRequest(ctx, http.MethodPatch, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gist write: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gist write: unexpected status %s", resp.Status)
	}
	return nil
}

func (g *Gist) newRequest(ctx context.Context, method string, body io.Reader) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/gists/%s", g.apiURL, g.gistID)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("new gist request: %w", err)
	}
	req.Header.Set("Authorization", "token "+g.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	return req, nil
}
