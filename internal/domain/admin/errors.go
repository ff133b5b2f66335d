package admin

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminInactive      = errors.New("admin account is inactive")
	ErrAdminNotFound      = errors.New("admin not found")
)
