package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/models"
)

// ErrNotAuthenticated is returned by writes when no anonymous session could be opened
var ErrNotAuthenticated = errors.New("no anonymous session")

// APIError is a non-2xx answer from the dispatch-board API
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api returned %d: %s: %s", e.Status, e.Message, e.Detail)
}

// Remote is a Store backed by the dispatch-board API
type Remote struct {
	baseURL *url.URL
	client  *http.Client
	dialer  *websocket.Dialer
	log     *zap.SugaredLogger

	authMu sync.Mutex
	mu     sync.RWMutex
	token  string
}

// NewRemote returns a Remote talking to the API at baseURL
func NewRemote(baseURL string, timeout time.Duration, log *zap.SugaredLogger) (*Remote, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Remote{
		baseURL: u,
		client:  &http.Client{Timeout: timeout},
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
		log:     log,
	}, nil
}

// Authenticate obtains the anonymous session token used by every write. Writes
// issued before it call it themselves.
func (r *Remote) Authenticate(ctx context.Context) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := r.do(ctx, http.MethodPost, "/api/v1/auth/anonymous", nil, &resp, false); err != nil {
		return fmt.Errorf("failed to open anonymous session: %w", err)
	}
	if resp.Token == "" {
		return errors.New("failed to open anonymous session: empty token")
	}
	r.mu.Lock()
	r.token = resp.Token
	r.mu.Unlock()
	return nil
}

// Create implements Store
func (r *Remote) Create(ctx context.Context, collection string, doc interface{}) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := r.do(ctx, http.MethodPost, "/api/v1/"+url.PathEscape(collection), doc, &resp, true); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Update implements Store
func (r *Remote) Update(ctx context.Context, collection, id string, fields interface{}) error {
	return r.do(ctx, http.MethodPatch, r.docPath(collection, id), fields, nil, true)
}

// Delete implements Store
func (r *Remote) Delete(ctx context.Context, collection, id string) error {
	return r.do(ctx, http.MethodDelete, r.docPath(collection, id), nil, nil, true)
}

// ListAll implements Store
func (r *Remote) ListAll(ctx context.Context, collection string) ([]Document, error) {
	var raw []json.RawMessage
	if err := r.do(ctx, http.MethodGet, "/api/v1/"+url.PathEscape(collection), nil, &raw, false); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(raw))
	for _, fields := range raw {
		var head struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(fields, &head); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", collection, err)
		}
		docs = append(docs, Document{ID: head.ID, Fields: fields})
	}
	return docs, nil
}

// Subscribe implements Store. The connection is not re-established once it
// drops; the channel is closed and the drop is logged.
func (r *Remote) Subscribe(ctx context.Context, q Query) (<-chan models.ChangeEvent, error) {
	u := *r.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/api/v1/feeds/" + url.PathEscape(q.Collection)
	params := url.Values{}
	if q.Field != "" {
		params.Set("field", q.Field)
		params.Set("since", q.Since.UTC().Format(time.RFC3339Nano))
	}
	u.RawQuery = params.Encode()

	conn, resp, err := r.dialer.DialContext(ctx, u.String(), r.authHeader())
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open %s feed: %w (status %d)", q.Collection, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to open %s feed: %w", q.Collection, err)
	}

	out := make(chan models.ChangeEvent)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var ev models.ChangeEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					r.log.Warnw("feed closed", "collection", q.Collection, "error", err)
				}
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *Remote) docPath(collection, id string) string {
	return "/api/v1/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}

func (r *Remote) authHeader() http.Header {
	h := http.Header{}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.token != "" {
		h.Set("Authorization", "Bearer "+r.token)
	}
	return h
}

// ensureSession opens a session unless one is already held
func (r *Remote) ensureSession(ctx context.Context) error {
	r.authMu.Lock()
	defer r.authMu.Unlock()
	if r.authHeader().Get("Authorization") != "" {
		return nil
	}
	r.log.Debugw("opening anonymous session for write")
	if err := r.Authenticate(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	return nil
}

func (r *Remote) do(ctx context.Context, method, path string, body, out interface{}, write bool) error {
	if write {
		if err := r.ensureSession(ctx); err != nil {
			return err
		}
	}
	header := r.authHeader()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header = header
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e models.ErrorMessageResponse
		if json.Unmarshal(b, &e) == nil && e.Response.Message != "" {
			apiErr.Message = e.Response.Message
			apiErr.Detail = e.Response.Error
		}
		return apiErr
	}
	if out == nil || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
