package user

import "errors"

var (
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrRoleRequired            = errors.New("role claim is required")
)
