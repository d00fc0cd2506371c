// Package api is the client for the vShareU account/social REST service:
// login, registration, user search, and the friend graph. Every record field
// goes through the identity normalizer before it reaches the core.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Richie010/vshareu/internal/identity"
)

// DefaultTimeout bounds every request; the session treats completions as
// events and must never hang on a dead upstream.
const DefaultTimeout = 5 * time.Second

// UpstreamError is any non-success response from the service. Surfaced to
// whatever initiated the call; never treated as an empty result.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("api: %s: upstream status %d: %s", e.Op, e.Status, e.Body)
}

// User is the account record shape shared by register, login, search and
// the friends listing.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Mobile   string `json:"mobile"`
}

// Key derives the canonical peer key for the record.
func (u User) Key() string {
	return identity.FromRecord(u.Name, u.Username, u.Mobile, u.ID)
}

// FriendRequest is one pending incoming request as the service returns it.
type FriendRequest struct {
	ID            int64  `json:"id"`
	FromName      string `json:"fromName"`
	FromMobile    string `json:"fromMobile"`
	RequesterName string `json:"requesterName"`
}

// Key derives the requester's canonical peer key.
func (r FriendRequest) Key() string {
	return identity.Derive(r.FromName, r.RequesterName, r.FromMobile)
}

// Client talks to one service instance. Safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client for the given base URL, e.g. "http://host:8080".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Register creates an account and returns the stored record.
func (c *Client) Register(name, mobile string) (User, error) {
	var u User
	err := c.postJSON("register", "/api/users", map[string]string{
		"name":   name,
		"mobile": mobile,
	}, &u)
	return u, err
}

// Login resolves a mobile number to an account. When the login endpoint
// itself fails, the search endpoint is tried and matched on the
// whitespace-stripped mobile — some deployments never implemented
// /api/login for pre-existing accounts.
func (c *Client) Login(mobile string) (User, error) {
	var u User
	err := c.postJSON("login", "/api/login", map[string]string{"mobile": mobile}, &u)
	if err == nil {
		return u, nil
	}

	list, searchErr := c.SearchUsers(mobile, 0)
	if searchErr != nil {
		return User{}, err // the original failure is the meaningful one
	}
	want := stripSpace(mobile)
	for _, cand := range list {
		if stripSpace(cand.Mobile) == want {
			return cand, nil
		}
	}
	return User{}, err
}

// SearchUsers queries accounts by name or mobile fragment. No matches is a
// valid empty result, not a failure. meID, when non-zero, excludes self.
func (c *Client) SearchUsers(query string, meID int64) ([]User, error) {
	q := url.Values{"query": {query}}
	if meID != 0 {
		q.Set("meId", strconv.FormatInt(meID, 10))
	}
	var list []User
	if err := c.getJSON("search", "/api/users?"+q.Encode(), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Friends lists the confirmed friends of a user.
func (c *Client) Friends(userID int64) ([]User, error) {
	var list []User
	path := "/api/friends?userId=" + strconv.FormatInt(userID, 10)
	if err := c.getJSON("friends", path, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// FriendRequests lists pending incoming requests for a user.
func (c *Client) FriendRequests(receiverID int64) ([]FriendRequest, error) {
	var list []FriendRequest
	path := "/api/friend-requests?receiverId=" + strconv.FormatInt(receiverID, 10)
	if err := c.getJSON("requests", path, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateFriendRequest sends a friend request from requester to receiver.
func (c *Client) CreateFriendRequest(requesterID, receiverID int64) error {
	return c.postJSON("create request", "/api/friend-requests", map[string]int64{
		"requesterId": requesterID,
		"receiverId":  receiverID,
	}, nil)
}

// AcceptFriendRequest confirms a pending request by id. The caller is
// expected to refetch friends and requests afterwards — the authoritative
// accept lives upstream and the two views must not diverge from it.
func (c *Client) AcceptFriendRequest(id int64) error {
	path := fmt.Sprintf("/api/friend-requests/%s/accept", url.PathEscape(strconv.FormatInt(id, 10)))
	return c.postJSON("accept request", path, nil, nil)
}

func (c *Client) getJSON(op, path string, out any) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("api: %s: %w", op, err)
	}
	return decode(op, resp, out)
}

func (c *Client) postJSON(op, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: %s: encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	resp, err := c.client.Post(c.baseURL+path, "application/json", body)
	if err != nil {
		return fmt.Errorf("api: %s: %w", op, err)
	}
	return decode(op, resp, out)
}

func decode(op string, resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: %s: decode: %w", op, err)
	}
	return nil
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
