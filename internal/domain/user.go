package domain

import (
	"encoding/json"
	"strings"
)

// User is the authenticated shopper.
type User struct {
	ID    ID       `json:"id"`
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// UnmarshalJSON folds userId, user_ID and id into ID and userName into Name.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       ID       `json:"id"`
		UserID   ID       `json:"userId"`
		UserID2  ID       `json:"user_ID"`
		Name     string   `json:"name"`
		UserName string   `json:"userName"`
		Email    string   `json:"email"`
		Roles    []string `json:"roles"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = User{
		ID:    firstID(raw.UserID, raw.UserID2, raw.ID),
		Name:  strings.TrimSpace(raw.Name),
		Email: strings.TrimSpace(raw.Email),
		Roles: raw.Roles,
	}
	if u.Name == "" {
		u.Name = strings.TrimSpace(raw.UserName)
	}
	return nil
}

// HasRole reports whether the user carries the role (case-insensitive).
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
