// Package parser extracts text from PDF knowledge files through the
// pdf_service.py sidecar.
package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// DefaultServiceURL is where pdf_service.py listens unless told otherwise.
const DefaultServiceURL = "http://localhost:5001"

// PythonPDFParser implements ports.DocumentParser against the pdf_service.py sidecar.
type PythonPDFParser struct {
	serviceURL string
	client     *http.Client
	pythonCmd  *exec.Cmd
	logger     *zap.Logger
}

// NewPythonPDFParser creates a new PDF parser that calls the extraction service.
func NewPythonPDFParser(serviceURL string, logger *zap.Logger) *PythonPDFParser {
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PythonPDFParser{
		serviceURL: serviceURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger.With(zap.String("component", "pdf_parser")),
	}
}

// parseResponse is the extraction service response format.
type parseResponse struct {
	Text    string `json:"text"`
	Pages   int    `json:"pages"`
	Library string `json:"library,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Parse extracts text from PDF bytes.
func (p *PythonPDFParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", p.serviceURL+"/parse", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Filename", filename)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling PDF service: %w: %w", ports.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("PDF service returned status %d: %w", resp.StatusCode, ports.ErrUpstreamUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var result parseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if result.Error != "" {
		return "", fmt.Errorf("PDF parse error: %s", result.Error)
	}

	p.logger.Debug("parsed pdf",
		zap.String("file", filename),
		zap.Int("pages", result.Pages),
		zap.String("library", result.Library))
	return result.Text, nil
}

// SupportedFormats returns formats this parser handles.
func (p *PythonPDFParser) SupportedFormats() []string {
	return []string{"pdf"}
}

// StartService launches pdf_service.py from scriptDir and waits until it
// reports healthy. The returned function stops it.
func (p *PythonPDFParser) StartService(ctx context.Context, scriptDir string) (func(), error) {
	scriptPath := filepath.Join(scriptDir, "pdf_service.py")
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("pdf_service.py not found at %s", scriptPath)
	}

	p.pythonCmd = exec.Command("python3", scriptPath)
	p.pythonCmd.Env = append(os.Environ(), "PDF_SERVICE_PORT="+p.port())
	output, err := p.pythonCmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("piping PDF service output: %w", err)
	}
	p.pythonCmd.Stderr = p.pythonCmd.Stdout

	if err := p.pythonCmd.Start(); err != nil {
		return nil, fmt.Errorf("starting PDF service: %w", err)
	}
	go p.relay(output)

	cleanup := func() {
		if p.pythonCmd != nil && p.pythonCmd.Process != nil {
			p.pythonCmd.Process.Kill()
			p.pythonCmd.Wait()
		}
	}

	deadline := time.Now().Add(10 * time.Second)
	for !p.IsServiceHealthy(ctx) {
		if time.Now().After(deadline) {
			cleanup()
			return nil, fmt.Errorf("PDF service did not become healthy")
		}
		select {
		case <-ctx.Done():
			cleanup()
			return nil, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}

	p.logger.Info("pdf service started", zap.String("url", p.serviceURL))
	return cleanup, nil
}

// relay copies sidecar output lines into the log until the pipe closes.
func (p *PythonPDFParser) relay(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p.logger.Debug("pdf service", zap.String("line", sc.Text()))
	}
}

// port returns the port of serviceURL, or 5001 when it has none.
func (p *PythonPDFParser) port() string {
	u, err := url.Parse(p.serviceURL)
	if err != nil || u.Port() == "" {
		return "5001"
	}
	return u.Port()
}

// IsServiceHealthy checks if the extraction service is running.
func (p *PythonPDFParser) IsServiceHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", p.serviceURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
