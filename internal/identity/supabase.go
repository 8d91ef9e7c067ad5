package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseProvider manages principals through the Supabase auth (GoTrue)
// admin API using the service role key.
type SupabaseProvider struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	now        func() time.Time
}

func NewSupabaseProvider(supabaseURL, serviceKey string) *SupabaseProvider {
	return &SupabaseProvider{
		baseURL:    strings.TrimRight(supabaseURL, "/") + "/auth/v1",
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

type gotrueError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
	Error     string `json:"error"`
	ErrorDesc string `json:"error_description"`
}

func (e gotrueError) message() string {
	for _, s := range []string{e.Msg, e.ErrorDesc, e.Error} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

func (p *SupabaseProvider) CreatePrincipal(ctx context.Context, email, secret string) (string, error) {
	body := map[string]interface{}{
		"email":         email,
		"password":      secret,
		"email_confirm": true,
	}

	var user struct {
		ID string `json:"id"`
	}
	status, gerr, err := p.do(ctx, http.MethodPost, "/admin/users", body, &user)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}
	if gerr != nil {
		return "", mapCreateError(status, gerr)
	}
	if user.ID == "" {
		return "", fmt.Errorf("%w: response missing user id", ErrProvisioningFailed)
	}
	return user.ID, nil
}

func mapCreateError(status int, e *gotrueError) error {
	switch e.ErrorCode {
	case "email_exists", "user_already_exists":
		return ErrEmailAlreadyInUse
	case "weak_password":
		return ErrWeakSecret
	case "email_address_invalid":
		return ErrInvalidEmail
	}

	// Older GoTrue releases only return a message.
	msg := strings.ToLower(e.message())
	switch {
	case strings.Contains(msg, "already been registered"), strings.Contains(msg, "already registered"):
		return ErrEmailAlreadyInUse
	case strings.Contains(msg, "password should be"), strings.Contains(msg, "weak password"):
		return ErrWeakSecret
	case strings.Contains(msg, "validate email"), strings.Contains(msg, "invalid email"):
		return ErrInvalidEmail
	}
	return fmt.Errorf("%w (%d): %s", ErrProvisioningFailed, status, e.message())
}

func (p *SupabaseProvider) DeletePrincipal(ctx context.Context, id string) error {
	status, gerr, err := p.do(ctx, http.MethodDelete, "/admin/users/"+id, nil, nil)
	if err != nil {
		return fmt.Errorf("delete principal: %w", err)
	}
	if gerr != nil {
		if status == http.StatusNotFound {
			return ErrPrincipalNotFound
		}
		return fmt.Errorf("delete principal (%d): %s", status, gerr.message())
	}
	return nil
}

func (p *SupabaseProvider) SignIn(ctx context.Context, email, secret string) (*Token, error) {
	body := map[string]string{"email": email, "password": secret}

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	status, gerr, err := p.do(ctx, http.MethodPost, "/token?grant_type=password", body, &resp)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if gerr != nil {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("sign in (%d): %s", status, gerr.message())
	}

	return &Token{
		AccessToken: resp.AccessToken,
		PrincipalID: resp.User.ID,
		ExpiresAt:   p.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

// do returns a decoded error body for non-2xx responses and a plain error
// only when the request itself failed.
func (p *SupabaseProvider) do(ctx context.Context, method, path string, body, dest interface{}) (int, *gotrueError, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", p.serviceKey)
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var gerr gotrueError
		if err := json.Unmarshal(raw, &gerr); err != nil {
			gerr.Msg = string(raw)
		}
		return resp.StatusCode, &gerr, nil
	}

	if dest != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dest); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil, nil
}
