package game

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"gather-go/core"
)

type MockWebWrapper struct {
	GetURLFunc  func(url string) (*http.Response, error)
	PostURLFunc func(url string, data url.Values) (*http.Response, error)
	HToken      string
}

func NewMockWebWrapper() *MockWebWrapper {
	return &MockWebWrapper{}
}

func htmlResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func (m *MockWebWrapper) GetURL(url string) (*http.Response, error) {
	if m.GetURLFunc != nil {
		return m.GetURLFunc(url)
	}
	return htmlResponse(""), nil
}

func (m *MockWebWrapper) PostURL(url string, data url.Values) (*http.Response, error) {
	if m.PostURLFunc != nil {
		return m.PostURLFunc(url, data)
	}
	return htmlResponse(""), nil
}

func (m *MockWebWrapper) SetHToken(h string) { m.HToken = h }

func (m *MockWebWrapper) CheckPaused() {}

func (m *MockWebWrapper) SetBot(bot core.Pausable) {}
