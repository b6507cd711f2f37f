package core

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

// pausePoll is how often a paused wrapper checks whether it may continue.
var pausePoll = 500 * time.Millisecond

// WebWrapper is an object for sending HTTP requests to a remote engine.
type WebWrapper struct {
	client       *http.Client
	headers      http.Header
	Endpoint     string
	minDelay     time.Duration
	maxDelay     time.Duration
	lastH        string // echoed back as the 'h' form field on POST
	lastResponse *http.Response
	bot          Pausable
	lock         sync.Mutex
}

// NewWebWrapper creates a new WebWrapper. Delays are in milliseconds; a zero maximum
// disables the random delay between requests.
func NewWebWrapper(endpoint string, minDelay, maxDelay int) (*WebWrapper, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &WebWrapper{
		client: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		headers: http.Header{
			"User-Agent": []string{"gather-go/1.0"},
			"Accept":     []string{"text/html"},
		},
		Endpoint: endpoint,
		minDelay: time.Duration(minDelay) * time.Millisecond,
		maxDelay: time.Duration(maxDelay) * time.Millisecond,
	}, nil
}

// SetBot registers the owner whose pause state holds requests.
func (ww *WebWrapper) SetBot(bot Pausable) {
	ww.lock.Lock()
	defer ww.lock.Unlock()
	ww.bot = bot
}

// SetHToken stores the token sent with every following POST.
func (ww *WebWrapper) SetHToken(h string) {
	ww.lock.Lock()
	defer ww.lock.Unlock()
	ww.lastH = h
}

// CheckPaused blocks while the owner is paused.
func (ww *WebWrapper) CheckPaused() {
	ww.lock.Lock()
	bot := ww.bot
	ww.lock.Unlock()
	if bot == nil {
		return
	}
	for bot.IsPaused() {
		time.Sleep(pausePoll)
	}
}

// setRefererAndOrigin updates the Referer and Origin headers based on the last response URL.
func (ww *WebWrapper) setRefererAndOrigin(req *http.Request) {
	if ww.lastResponse != nil && ww.lastResponse.Request != nil {
		req.Header.Set("Referer", ww.lastResponse.Request.URL.String())
	}
	originURL, err := url.Parse(ww.Endpoint)
	if err == nil {
		req.Header.Set("Origin", originURL.Scheme+"://"+originURL.Host)
	}
}

// randomDelay introduces a random delay before making a request.
func (ww *WebWrapper) randomDelay() {
	if ww.maxDelay > 0 && ww.maxDelay > ww.minDelay {
		delay := time.Duration(rand.Int63n(int64(ww.maxDelay-ww.minDelay)) + int64(ww.minDelay))
		time.Sleep(delay)
	}
}

func (ww *WebWrapper) resolve(path string) (string, error) {
	fullURL, err := url.Parse(ww.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}
	fullURL, err = fullURL.Parse(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse path: %w", err)
	}
	return fullURL.String(), nil
}

// GetURL fetches a URL using a GET request.
func (ww *WebWrapper) GetURL(path string) (*http.Response, error) {
	ww.CheckPaused()
	ww.randomDelay()
	fullURL, err := ww.resolve(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	req.Header = ww.headers.Clone()

	ww.lock.Lock()
	defer ww.lock.Unlock()
	ww.setRefererAndOrigin(req)

	resp, err := ww.client.Do(req)
	if err != nil {
		log.Printf("GET %s failed: %v", path, err)
		return nil, err
	}
	ww.lastResponse = resp
	log.Printf("GET %s [%d]", path, resp.StatusCode)
	return resp, nil
}

// PostURL sends a POST request with form data.
func (ww *WebWrapper) PostURL(path string, data url.Values) (*http.Response, error) {
	ww.CheckPaused()
	ww.randomDelay()
	fullURL, err := ww.resolve(path)
	if err != nil {
		return nil, err
	}

	if data == nil {
		data = url.Values{}
	}
	ww.lock.Lock()
	defer ww.lock.Unlock()
	if ww.lastH != "" && data.Get("h") == "" {
		data.Set("h", ww.lastH)
	}

	req, err := http.NewRequest(http.MethodPost, fullURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header = ww.headers.Clone()
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ww.setRefererAndOrigin(req)

	resp, err := ww.client.Do(req)
	if err != nil {
		log.Printf("POST %s failed: %v", path, err)
		return nil, err
	}
	ww.lastResponse = resp
	log.Printf("POST %s %s [%d]", path, data.Encode(), resp.StatusCode)
	return resp, nil
}

// ReadBody reads the response body and returns it as a string.
func ReadBody(resp *http.Response) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("response is nil")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return string(body), fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return string(body), nil
}
