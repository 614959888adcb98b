// Package tokenstore persists the registry session across restarts.
//
// A session is stored as two key-value entries: the registry token and the
// user info as JSON. Stores treat a half-written pair as no session.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mcpcollection/mcpcollection/internal/models"
)

const (
	// TokenKey holds the opaque registry token
	TokenKey = "mcp_auth_token"
	// UserInfoKey holds the user info as JSON
	UserInfoKey = "mcp_user_info"
)

// ErrNoSession is returned by Load when nothing usable is stored
var ErrNoSession = errors.New("no stored session")

// Store loads, saves and clears the persisted session
type Store interface {
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Clear(ctx context.Context) error
}

func encode(session *models.Session) (map[string]string, error) {
	if !session.Valid() {
		return nil, errors.New("session must carry both token and username")
	}
	info, err := json.Marshal(models.UserInfo{Username: session.Username})
	if err != nil {
		return nil, err
	}
	return map[string]string{
		TokenKey:    session.Token,
		UserInfoKey: string(info),
	}, nil
}

func decode(values map[string]string) (*models.Session, error) {
	token := values[TokenKey]
	raw := values[UserInfoKey]
	if token == "" || raw == "" {
		return nil, ErrNoSession
	}

	var info models.UserInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil || info.Username == "" {
		return nil, ErrNoSession
	}

	return &models.Session{Token: token, Username: info.Username}, nil
}
