// Package apify provides a client for the Apify actor API, used to scrape
// professional network profiles that block direct fetching.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://api.apify.com/v2"
	defaultActor   = "dev_fusion~linkedin-profile-scraper"
)

// Client runs Apify actors synchronously and returns their dataset items.
type Client interface {
	// ScrapeProfiles runs the profile scraper actor against the given profile
	// URLs and returns one Profile per URL that could be scraped.
	ScrapeProfiles(ctx context.Context, profileURLs []string) ([]Profile, error)
}

// Profile is a scraped professional network profile.
type Profile struct {
	URL         string `json:"url"`
	FullName    string `json:"fullName"`
	Headline    string `json:"headline"`
	JobTitle    string `json:"jobTitle"`
	CompanyName string `json:"companyName"`
	Industry    string `json:"companyIndustry"`
	CompanySize string `json:"companySize"`
	Location    string `json:"addressWithCountry"`
	Connections int    `json:"connections"`
	About       string `json:"about"`
}

// runInput is the actor input for a profile scrape run.
type runInput struct {
	ProfileURLs []string `json:"profileUrls"`
}

// APIError is returned when Apify responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apify: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithActor overrides the default profile scraper actor.
func WithActor(actor string) Option {
	return func(c *httpClient) {
		c.actor = actor
	}
}

// WithTimeout overrides the default request timeout. Synchronous actor runs
// block until the scrape finishes, so this bounds the whole run.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	baseURL string
	actor   string
	http    *http.Client
}

// NewClient creates an Apify API client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		actor:   defaultActor,
		http: &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ScrapeProfiles(ctx context.Context, profileURLs []string) ([]Profile, error) {
	if len(profileURLs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(runInput{ProfileURLs: profileURLs})
	if err != nil {
		return nil, eris.Wrap(err, "apify: marshal actor input")
	}

	endpoint := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items", c.baseURL, url.PathEscape(c.actor))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "apify: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "apify: run actor")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "apify: read response")
	}

	// run-sync-get-dataset-items answers 201 on a finished run.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var profiles []Profile
	if err := json.Unmarshal(respBody, &profiles); err != nil {
		return nil, eris.Wrap(err, "apify: unmarshal dataset items")
	}

	return profiles, nil
}
