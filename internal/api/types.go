package api

import "encoding/json"

// jsonString tolerates backend ids arriving as JSON strings or numbers.
type jsonString string

func (j *jsonString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*j = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*j = jsonString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*j = jsonString(n.String())
	return nil
}

func (j jsonString) String() string { return string(j) }

// User describes a SyncNotes account.
type User struct {
	ID       jsonString `json:"id"`
	Name     string     `json:"name"`
	Username string     `json:"username"`
}

// Member is a user's membership in a room.
type Member struct {
	ID       jsonString `json:"id"`
	UserID   jsonString `json:"userId"`
	Username string     `json:"username"`
	Role     string     `json:"role"`
}

// Room is a collaboration space with members, tasks and a chat topic.
type Room struct {
	ID          jsonString `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsPublic    bool       `json:"isPublic"`
	Members     []Member   `json:"members,omitempty"`
}

// Task is a to-do item scoped to a room.
type Task struct {
	ID          jsonString `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
}

// Me is the aggregate returned by the session endpoint.
type Me struct {
	User    User   `json:"user"`
	Rooms   []Room `json:"rooms"`
	Tasks   []Task `json:"tasks"`
	Message string `json:"message"`
}

// CreateRoomRequest is the body for room creation.
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

// CreateTaskRequest is the body for task creation.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateTaskRequest is the body for task updates.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type addMemberRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type serverMessage struct {
	Message string `json:"message"`
}

// errorResponse is how the backend reports failures: {error} or {message}.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
