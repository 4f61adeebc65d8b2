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
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/syncnotes/syncnotes-go/internal/proto"
	"github.com/syncnotes/syncnotes-go/internal/session"
)

// Error is a failure reported by the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
}

// Client performs bearer-authenticated JSON calls against the SyncNotes backend.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *session.Store
	log      *zerolog.Logger
}

// New builds a REST client. baseURL must be non-empty; a CLI has no
// same-origin fallback.
func New(baseURL string, timeout time.Duration, sessions *session.Store, logger *zerolog.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend base URL is not configured")
	}
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		sessions: sessions,
		log:      logger,
	}, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Login exchanges credentials for a bearer token. The token is returned,
// not stored: the session store owns persistence.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", loginRequest{Username: username, Password: password}, &resp, false)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("login response carried no token")
	}
	return resp.Token, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, name, username, password string) error {
	return c.do(ctx, http.MethodPost, "/api/users/signup-user", registerRequest{Name: name, Username: username, Password: password}, nil, false)
}

// Me returns the current user together with their rooms and pending tasks.
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &me, true); err != nil {
		return nil, err
	}
	return &me, nil
}

// PublicRooms lists rooms anyone can join.
func (c *Client) PublicRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms/public", nil, &rooms, true); err != nil {
		return nil, err
	}
	return rooms, nil
}

// MyRooms lists rooms the current user belongs to.
func (c *Client) MyRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms/my-rooms", nil, &rooms, true); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a room owned by the current user.
func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	var room Room
	if err := c.do(ctx, http.MethodPost, "/api/rooms", req, &room, true); err != nil {
		return nil, err
	}
	return &room, nil
}

// RoomDetails fetches one room including its members.
func (c *Client) RoomDetails(ctx context.Context, roomID string) (*Room, error) {
	var room Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID), nil, &room, true); err != nil {
		return nil, err
	}
	return &room, nil
}

// DeleteRoom removes a room.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodDelete, "/api/rooms/"+url.PathEscape(roomID), nil, nil, true)
}

// JoinRoom adds the current user to a public room.
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/join", nil, nil, true)
}

// AddMember adds a user to a room with the given role.
func (c *Client) AddMember(ctx context.Context, roomID, userID, role string) error {
	return c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/members", addMemberRequest{UserID: userID, Role: role}, nil, true)
}

// UpdateMemberRole changes a member's role. The backend takes the role as a
// query parameter on this endpoint.
func (c *Client) UpdateMemberRole(ctx context.Context, roomID, memberID, role string) error {
	path := fmt.Sprintf("/api/rooms/%s/members/%s/role?role=%s",
		url.PathEscape(roomID), url.PathEscape(memberID), url.QueryEscape(role))
	return c.do(ctx, http.MethodPut, path, nil, nil, true)
}

// SearchUser looks a user up by username.
func (c *Client) SearchUser(ctx context.Context, username string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/users/searchUser/"+url.PathEscape(username), nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// RoomTasks lists tasks in a room, optionally filtered by completion.
func (c *Client) RoomTasks(ctx context.Context, roomID string, completed *bool) ([]Task, error) {
	path := "/api/rooms/" + url.PathEscape(roomID) + "/tasks"
	if completed != nil {
		path += "?completed=" + strconv.FormatBool(*completed)
	}
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks, true); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask creates a task in a room.
func (c *Client) CreateTask(ctx context.Context, roomID string, req CreateTaskRequest) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/tasks", req, &task, true); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask updates a task.
func (c *Client) UpdateTask(ctx context.Context, roomID, taskID string, req UpdateTaskRequest) error {
	return c.do(ctx, http.MethodPut, "/api/rooms/"+url.PathEscape(roomID)+"/tasks/"+url.PathEscape(taskID), req, nil, true)
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, roomID, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/rooms/"+url.PathEscape(roomID)+"/tasks/"+url.PathEscape(taskID), nil, nil, true)
}

// RoomMessages fetches a room's message history, normalized to the same
// record shape the realtime layer produces.
func (c *Client) RoomMessages(ctx context.Context, roomID string) ([]proto.ChatMessage, error) {
	return c.fetchMessages(ctx, "/api/rooms/"+url.PathEscape(roomID)+"/messages")
}

// RoomHistory fetches the extended history endpoint.
func (c *Client) RoomHistory(ctx context.Context, roomID string) ([]proto.ChatMessage, error) {
	return c.fetchMessages(ctx, "/api/rooms/"+url.PathEscape(roomID)+"/history")
}

func (c *Client) fetchMessages(ctx context.Context, path string) ([]proto.ChatMessage, error) {
	var raw []json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw, true); err != nil {
		return nil, err
	}

	msgs := make([]proto.ChatMessage, 0, len(raw))
	for _, body := range raw {
		msg, err := proto.DecodeFrame(body)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable history entry")
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Ping asks the backend for its greeting message, mostly to verify
// connectivity and credentials.
func (c *Client) Ping(ctx context.Context) (string, error) {
	var resp serverMessage
	if err := c.do(ctx, http.MethodGet, "/api/message", nil, &resp, true); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		token, err := c.sessions.Token()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError extracts {error|message} bodies, falling back to the raw text.
func decodeError(status int, body []byte) *Error {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return &Error{Status: status, Message: parsed.Error}
		}
		if parsed.Message != "" {
			return &Error{Status: status, Message: parsed.Message}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Status: status, Message: msg}
}
