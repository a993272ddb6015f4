package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"listingdesk/config"
	"listingdesk/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrNoSession          = errors.New("no active session")
)

// Client is a Supabase GoTrue client that broadcasts auth state changes.
type Client struct {
	url    string
	key    string
	client *http.Client

	mu        sync.Mutex
	listeners map[int]chan Event
	nextID    int
}

func NewClient(cfg *config.SupabaseConfig, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		url:       strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		key:       cfg.AnonKey,
		client:    client,
		listeners: make(map[int]chan Event),
	}
}

// OnAuthStateChange returns a channel of auth events and a function that
// unsubscribes and closes it.
func (c *Client) OnAuthStateChange() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan Event, 8)
	c.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// emit delivers ev to every listener without blocking. A full listener
// loses its oldest queued event instead of ev, so the latest auth state
// always arrives.
func (c *Client) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.listeners {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case old := <-ch:
			logging.Warnf("auth: listener full, dropping stale %s event", old.Type)
		default:
		}
		// Only emit sends and it holds c.mu, so the slot just freed is ours.
		ch <- ev
	}
}

type SignUpParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SignUp registers a user. When email confirmation is required the returned
// session is nil and only the user is populated.
func (c *Client) SignUp(ctx context.Context, p SignUpParams) (*User, *Session, error) {
	body := map[string]any{
		"email":    p.Email,
		"password": p.Password,
		"data": map[string]string{
			"first_name": p.FirstName,
			"last_name":  p.LastName,
		},
	}
	data, err := c.post(ctx, "/signup", body, "")
	if err != nil {
		return nil, nil, err
	}

	var resp struct {
		Session
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, nil, fmt.Errorf("decode signup: %w", err)
	}

	if resp.AccessToken == "" {
		return &User{ID: resp.ID, Email: resp.Email}, nil, nil
	}
	session := resp.Session
	c.emit(Event{Type: EventSignedIn, Session: &session})
	return &session.User, &session, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	data, err := c.post(ctx, "/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		return nil, err
	}

	session, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	c.emit(Event{Type: EventSignedIn, Session: session})
	return session, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrNoSession
	}
	data, err := c.post(ctx, "/token?grant_type=refresh_token", map[string]string{
		"refresh_token": refreshToken,
	}, "")
	if err != nil {
		return nil, err
	}

	session, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	c.emit(Event{Type: EventTokenRefreshed, Session: session})
	return session, nil
}

// GetUser verifies an access token with the provider.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/user", nil)
	if err != nil {
		return nil, err
	}
	data, err := c.do(req, accessToken)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// SignOut revokes the session remotely and always emits SIGNED_OUT so local
// state is cleared even if the revoke call fails.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	defer c.emit(Event{Type: EventSignedOut})

	if accessToken == "" {
		return nil
	}
	_, err := c.post(ctx, "/logout", nil, accessToken)
	return err
}

func (c *Client) post(ctx context.Context, path string, body any, bearer string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, bearer)
}

func (c *Client) do(req *http.Request, bearer string) ([]byte, error) {
	req.Header.Set("apikey", c.key)
	if bearer == "" {
		bearer = c.key
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, classifyError(resp.StatusCode, data)
	}
	return data, nil
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func classifyError(status int, data []byte) error {
	var body errorBody
	_ = json.Unmarshal(data, &body)

	text := strings.ToLower(strings.Join([]string{
		body.Error, body.ErrorDescription, body.ErrorCode, body.Msg, body.Message,
	}, " "))

	switch {
	case strings.Contains(text, "email_not_confirmed"), strings.Contains(text, "email not confirmed"):
		return ErrEmailNotConfirmed
	case strings.Contains(text, "invalid_credentials"), strings.Contains(text, "invalid login credentials"):
		return ErrInvalidCredentials
	}
	return fmt.Errorf("auth error %d: %s", status, string(data))
}

func decodeSession(data []byte) (*Session, error) {
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.AccessToken == "" {
		return nil, ErrNoSession
	}
	return &session, nil
}
