package service

import "errors"

var (
	ErrUnauthenticated = errors.New("user is not authenticated")
	ErrTotalMismatch   = errors.New("client total does not match server recomputation")
)
