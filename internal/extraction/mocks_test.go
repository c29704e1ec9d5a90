package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type mockTextLayer struct {
	pages []string
	err   error
	calls int
}

func (m *mockTextLayer) Pages(data []byte) ([]string, error) {
	m.calls++
	return m.pages, m.err
}

type mockRenderer struct {
	pageCount int
	openErr   error
	renderErr map[int]error
	closed    bool
}

func (m *mockRenderer) Open(data []byte) (Pages, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &mockPages{renderer: m}, nil
}

type mockPages struct {
	renderer *mockRenderer
}

func (p *mockPages) Count() int { return p.renderer.pageCount }

func (p *mockPages) PNG(index int, dpi float64) ([]byte, error) {
	if err := p.renderer.renderErr[index]; err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("page-%d", index)), nil
}

func (p *mockPages) Close() error {
	p.renderer.closed = true
	return nil
}

// mockVisionClient answers vision calls from a table keyed by image bytes.
type mockVisionClient struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	images    []string
	mimeTypes []string
}

func (m *mockVisionClient) Name() string { return "mock" }

func (m *mockVisionClient) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("unexpected text completion")
}

func (m *mockVisionClient) CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, string(image))
	m.mimeTypes = append(m.mimeTypes, mimeType)
	if err := m.errs[string(image)]; err != nil {
		return "", err
	}
	return m.responses[string(image)], nil
}

func (m *mockVisionClient) Close() error { return nil }

func (m *mockVisionClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}
