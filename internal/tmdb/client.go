package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/moviehub/backend/internal/logging"
)

const (
	// DefaultBaseURL is the public v3 API root.
	DefaultBaseURL = "https://api.themoviedb.org/3"
	// DefaultLanguage is sent when the caller does not pick a locale.
	DefaultLanguage = "en-US"
	// DefaultTimeout bounds every upstream call. Calls are never retried.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 8 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Language   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Cache      *Cache
}

// Client talks to The Movie Database. Cache-enabled lookups are read through the
// shared Cache and identical concurrent lookups share one upstream request.
type Client struct {
	baseURL  string
	apiKey   string
	language string
	http     *http.Client
	timeout  time.Duration
	cache    *Cache
	group    *singleflight.Group
	noCache  bool
}

// NewClient constructs a Client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	language := strings.TrimSpace(opts.Language)
	if language == "" {
		language = DefaultLanguage
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  baseURL,
		apiKey:   strings.TrimSpace(opts.APIKey),
		language: language,
		http:     httpClient,
		timeout:  timeout,
		cache:    opts.Cache,
		group:    &singleflight.Group{},
	}
}

// Uncached returns a view of the client whose typed helpers always go upstream.
func (c *Client) Uncached() *Client {
	clone := *c
	clone.noCache = true
	return &clone
}

// Fetch performs a GET against path and returns the raw JSON document. The API
// key is always attached and the default language is added unless params
// already carries one.
func (c *Client) Fetch(ctx context.Context, path string, params url.Values, useCache bool) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, &TransportError{Path: path, Err: ErrNotConfigured}
	}

	query := url.Values{}
	for key, values := range params {
		query[key] = append([]string(nil), values...)
	}
	if query.Get("language") == "" {
		query.Set("language", c.language)
	}

	if !useCache || c.cache == nil {
		return c.do(ctx, path, query)
	}

	key := CacheKey(path, query)
	if body, ok := c.cache.Get(key); ok {
		logging.FromContext(ctx).Debug("tmdb cache hit", slog.String("path", path))
		return body, nil
	}

	// The shared call keeps the first caller's logger but not its cancellation.
	// Each caller stops waiting when its own context ends.
	results := c.group.DoChan(key, func() (any, error) {
		if body, ok := c.cache.Get(key); ok {
			return json.RawMessage(body), nil
		}
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		body, err := c.do(callCtx, path, query)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, body)
		return body, nil
	})

	select {
	case <-ctx.Done():
		return nil, &TransportError{Path: path, Err: ctx.Err()}
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	}
}

func (c *Client) do(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	ctx, span := logging.StartSpan(ctx, "tmdb.fetch", slog.String("path", path))
	defer span.End()

	withKey := url.Values{}
	for key, values := range query {
		withKey[key] = values
	}
	withKey.Set("api_key", c.apiKey)

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/") + "?" + withKey.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error repeats the request URL, which carries the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		terr := &TransportError{Path: path, Err: err}
		span.Fail(terr)
		return nil, terr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		terr := &TransportError{Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
		span.Fail(terr)
		return nil, terr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := &TransportError{Path: path, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
		span.Fail(terr)
		return nil, terr
	}

	if !json.Valid(body) {
		terr := &TransportError{Path: path, StatusCode: resp.StatusCode, Err: errors.New("response is not valid json")}
		span.Fail(terr)
		return nil, terr
	}

	return json.RawMessage(body), nil
}

func (c *Client) fetchInto(ctx context.Context, path string, params url.Values, dst any) error {
	body, err := c.Fetch(ctx, path, params, !c.noCache)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &TransportError{Path: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// PopularMovies returns one page of the popular movies listing.
func (c *Client) PopularMovies(ctx context.Context, page int) (MoviePage, error) {
	var out MoviePage
	err := c.fetchInto(ctx, "/movie/popular", url.Values{"page": {pageParam(page)}}, &out)
	return out, err
}

// SearchMovies runs a free-text movie search. Adult titles are excluded.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (MoviePage, error) {
	var out MoviePage
	params := url.Values{
		"query":         {query},
		"page":          {pageParam(page)},
		"include_adult": {"false"},
	}
	err := c.fetchInto(ctx, "/search/movie", params, &out)
	return out, err
}

// Genres returns the vendor movie genre taxonomy.
func (c *Client) Genres(ctx context.Context) ([]Genre, error) {
	var out genreList
	if err := c.fetchInto(ctx, "/genre/movie/list", nil, &out); err != nil {
		return nil, err
	}
	return out.Genres, nil
}

// MovieDetails returns the full movie document with videos, credits, images and
// similar titles appended.
func (c *Client) MovieDetails(ctx context.Context, id int64) (json.RawMessage, error) {
	params := url.Values{"append_to_response": {"videos,credits,images,similar"}}
	return c.Fetch(ctx, "/movie/"+strconv.FormatInt(id, 10), params, !c.noCache)
}

// Person returns the person document.
func (c *Client) Person(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.Fetch(ctx, "/person/"+strconv.FormatInt(id, 10), nil, !c.noCache)
}

// PersonCredits returns the combined movie and TV credits for a person.
func (c *Client) PersonCredits(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.Fetch(ctx, "/person/"+strconv.FormatInt(id, 10)+"/combined_credits", nil, !c.noCache)
}

func pageParam(page int) string {
	if page < 1 {
		page = 1
	}
	return strconv.Itoa(page)
}
