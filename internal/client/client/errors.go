package client

import "errors"

var (
	ErrUnavailable        = errors.New("server unavailable")
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrUnexpectedResponse = errors.New("unexpected server response")
)
