package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ErrNotAuthenticated is returned by every mutating operation when no
// session is active.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrUnsupported marks operations the substrate cannot express, such as
// removing a record from another account's repository.
var ErrUnsupported = errors.New("operation not supported by the substrate")

// PermissionError is raised by the advisory client-side admin check. Nothing
// prevents a modified client from bypassing it.
type PermissionError struct {
	Action string
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("only admins can %s", e.Action)
}

func (e PermissionError) Is(target error) bool {
	_, ok := target.(PermissionError)
	if ok {
		return true
	}
	_, ok = target.(*PermissionError)
	return ok
}

// ErrPermission is the sentinel for admin-check failures.
var ErrPermission = PermissionError{}
