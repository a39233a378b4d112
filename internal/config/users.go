package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// UserPreferences is the opt-in/opt-out snapshot carried on a user profile.
// Pointers distinguish "never set" from an explicit false: promotions default
// to opted in, recommendations require an explicit opt-in.
type UserPreferences struct {
	Promotions      *bool `json:"promotions,omitempty" bson:"promotions,omitempty"`
	OrderUpdates    *bool `json:"orderUpdates,omitempty" bson:"orderUpdates,omitempty"`
	Recommendations *bool `json:"recommendations,omitempty" bson:"recommendations,omitempty"`
}

// WantsPromotions reports whether promotional email is allowed (not
// explicitly disabled).
func (p UserPreferences) WantsPromotions() bool {
	return p.Promotions == nil || *p.Promotions
}

// WantsRecommendations reports whether the user explicitly opted in to
// recommendation email.
func (p UserPreferences) WantsRecommendations() bool {
	return p.Recommendations != nil && *p.Recommendations
}

// User is the read-only profile snapshot served by the users service.
type User struct {
	ID          string          `json:"_id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Preferences UserPreferences `json:"preferences"`
}

type UsersConfig struct {
	ServiceURL string
}

func NewUsersConfig() *UsersConfig {
	serviceURL := os.Getenv("USERS_SERVICE_URL")
	if serviceURL == "" {
		log.Fatal("Missing Environment variable USERS_SERVICE_URL")
	}
	return &UsersConfig{ServiceURL: serviceURL}
}

type UsersClient struct {
	Config *UsersConfig
	client *http.Client
}

func NewUsersClient(config *UsersConfig) *UsersClient {
	return &UsersClient{
		Config: config,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// GetUser fetches a single user profile. A missing user or a profile without
// an email address yields (nil, nil); transport failures yield an error so
// callers can retry.
func (u *UsersClient) GetUser(ctx context.Context, userID string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.Config.ServiceURL+"/"+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to create request: %w", err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch user %s: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("users service returned status %d for user %s", resp.StatusCode, userID)
	}

	// The users service wraps responses in {"result": ...}; tolerate an
	// unwrapped body as well.
	var wrapped struct {
		Result *User `json:"result"`
	}
	body := json.NewDecoder(resp.Body)
	var raw json.RawMessage
	if err := body.Decode(&raw); err != nil {
		return nil, fmt.Errorf("Failed to decode user response: %w", err)
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Result != nil {
		return normalizeUser(wrapped.Result, userID), nil
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("Failed to decode user response: %w", err)
	}
	return normalizeUser(&user, userID), nil
}

// ListUsers fetches the full user listing used for promotional sampling.
func (u *UsersClient) ListUsers(ctx context.Context) ([]User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.Config.ServiceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to create request: %w", err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("users service returned status %d", resp.StatusCode)
	}

	var wrapped struct {
		Result []User `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapped); err != nil {
		return nil, fmt.Errorf("Failed to decode users response: %w", err)
	}
	return wrapped.Result, nil
}

func normalizeUser(user *User, userID string) *User {
	if user.Email == "" {
		log.Printf("No email in response for user %s", userID)
		return nil
	}
	if user.ID == "" {
		user.ID = userID
	}
	if user.Name == "" {
		user.Name = "Valued Customer"
	}
	return user
}
