package e

import "errors"

var (
	ErrFolderNotFound     = errors.New("remote folder not found")
	ErrRootNotConfigured  = errors.New("remote root folder not configured")
	ErrClientExists       = errors.New("client already exists")
	ErrNoClientFound      = errors.New("no client found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrNotImplemented     = errors.New("not implemented")
)
