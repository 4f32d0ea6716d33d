package api

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
	"time"

	"github.com/opsbookhq/opsbook/internal/common"
	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/models"
	"github.com/sethvargo/go-retry"
)

// HTTPClient implements Client over authenticated HTTPS/JSON.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        logging.Logger
	maxRetries uint64
	baseDelay  time.Duration
}

// NewHTTPClient builds a client for baseURL using the given bearer token.
// A nil httpClient gets a 15 second timeout default. If the token is a JWT
// whose expiry already passed, a warning is logged up front; every call
// would come back 401 otherwise, which is confusing to debug.
func NewHTTPClient(baseURL, token string, httpClient *http.Client, log logging.Logger) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	c := &HTTPClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		log:        log,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
	}
	if exp, ok := TokenExpiry(c.token); ok && time.Now().After(exp) {
		log.Warn(context.Background(), "api token is expired", "expired_at", exp)
	}
	return c
}

func (c *HTTPClient) GetWorkspaces(ctx context.Context) ([]RemoteWorkspace, error) {
	var out struct {
		Workspaces []RemoteWorkspace `json:"workspaces"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/workspaces", nil, &out); err != nil {
		return nil, err
	}
	return out.Workspaces, nil
}

func (c *HTTPClient) CreateUserWorkspace(ctx context.Context, req CreateWorkspaceRequest) (*RemoteWorkspace, error) {
	var out RemoteWorkspace
	if err := c.do(ctx, http.MethodPost, "/api/workspaces", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetWorkspace(ctx context.Context, id string) (*RemoteWorkspace, error) {
	var out RemoteWorkspace
	if err := c.do(ctx, http.MethodGet, "/api/workspaces/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetRunbook(ctx context.Context, nwoOrID string) (*RemoteRunbook, error) {
	var out RemoteRunbook
	if err := c.do(ctx, http.MethodGet, "/api/runbooks/"+escapeNwo(nwoOrID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateRunbook(ctx context.Context, req CreateRunbookRequest) (*RemoteRunbook, error) {
	var out RemoteRunbook
	if err := c.do(ctx, http.MethodPost, "/api/runbooks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateRunbook(ctx context.Context, id string, req UpdateRunbookRequest) (*RemoteRunbook, error) {
	var out RemoteRunbook
	if err := c.do(ctx, http.MethodPut, "/api/runbooks/"+url.PathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateSnapshot(ctx context.Context, req CreateSnapshotRequest) error {
	return c.do(ctx, http.MethodPost, "/api/runbooks/"+url.PathEscape(req.RunbookID)+"/snapshots", req, nil)
}

func (c *HTTPClient) DeleteSnapshot(ctx context.Context, runbookID, tag string) error {
	path := "/api/runbooks/" + url.PathEscape(runbookID) + "/snapshots/" + url.PathEscape(tag)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// AcceptCollaboration treats any client error as "invitation already
// resolved": the caller proceeds to reconciliation either way.
func (c *HTTPClient) AcceptCollaboration(ctx context.Context, invitationID string) error {
	return c.resolveCollaboration(ctx, invitationID, "accept")
}

func (c *HTTPClient) DeclineCollaboration(ctx context.Context, invitationID string) error {
	return c.resolveCollaboration(ctx, invitationID, "decline")
}

func (c *HTTPClient) resolveCollaboration(ctx context.Context, invitationID, verb string) error {
	path := "/api/collaborations/" + url.PathEscape(invitationID) + "/" + verb
	err := c.do(ctx, http.MethodPost, path, nil, nil)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) || errors.Is(err, common.ErrNotFound) {
		// Already accepted/declined elsewhere: expected state.
		return nil
	}
	return err
}

type operationEnvelope struct {
	ID          string                  `json:"id"`
	WorkspaceID string                  `json:"workspace_id"`
	Type        models.OperationKind    `json:"type"`
	ChangeRef   int64                   `json:"change_ref,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	Payload     models.OperationPayload `json:"payload"`
}

func (c *HTTPClient) SubmitOperation(ctx context.Context, op models.Operation) error {
	env := operationEnvelope{
		ID:          op.ID,
		WorkspaceID: op.WorkspaceID,
		Type:        op.Payload.Kind(),
		ChangeRef:   int64(op.ChangeRef),
		CreatedAt:   op.CreatedAt,
		Payload:     op.Payload,
	}
	return c.do(ctx, http.MethodPost, "/api/operations", env, nil)
}

// do performs one JSON request with retry on transient failures. Non-2xx
// statuses are classified: 401/403 unauthorized, 404/410 not found, other
// 4xx a client error with the server message, 5xx transient.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.baseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doOnce(ctx, method, path, body, out)
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	return c.classify(resp)
}

func (c *HTTPClient) classify(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: http %d", common.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return common.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: http %d", common.ErrUnavailable, resp.StatusCode)
	default:
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
			httpErr.Code = payload.Code
			httpErr.Message = payload.Message
		}
		return httpErr
	}
}

func escapeNwo(nwoOrID string) string {
	// Keep the owner/slug separator intact so the server can route both forms.
	parts := strings.Split(nwoOrID, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return strings.Join(parts, "/")
}
