package models

// Session is an authenticated registry session. Token and Username are
// either both set or both empty.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Valid reports whether the session carries both a token and a user
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.Username != ""
}

// UserInfo is the persisted identity half of a session
type UserInfo struct {
	Username string `json:"username"`
}

// DeviceCodeGrant is issued by GitHub at the start of a device flow
type DeviceCodeGrant struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
}
