package bitbucket

import "net/http"

// Credentials supplies authentication material for outgoing requests.
// Implementations are immutable; ApplyTo is called once per request before
// dispatch and must not mutate the credentials themselves.
type Credentials interface {
	ApplyTo(req *http.Request)
}

type anonymousCredentials struct{}

func (anonymousCredentials) ApplyTo(*http.Request) {}

// Anonymous performs requests without any authentication material.
var Anonymous Credentials = anonymousCredentials{}

// TokenCredentials authenticates with a personal access token.
type TokenCredentials struct {
	token string
}

// NewTokenCredentials creates bearer-token credentials.
func NewTokenCredentials(token string) TokenCredentials {
	return TokenCredentials{token: token}
}

func (c TokenCredentials) ApplyTo(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// BasicCredentials authenticates with username and password.
type BasicCredentials struct {
	username string
	password string
}

// NewBasicCredentials creates username/password credentials.
func NewBasicCredentials(username, password string) BasicCredentials {
	return BasicCredentials{username: username, password: password}
}

func (c BasicCredentials) ApplyTo(req *http.Request) {
	req.SetBasicAuth(c.username, c.password)
}
