package cli

import "fmt"

type pageNotFoundError struct {
	id int64
}

func (e pageNotFoundError) Error() string {
	return fmt.Sprintf("Page not found. (id %d)", e.id)
}

func errPageNotFound(id int64) error {
	return pageNotFoundError{id: id}
}

// userError carries copy shown to the user as is, optionally followed by the cause.
type userError struct {
	msg string
	err error
}

func (e userError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e userError) Unwrap() error { return e.err }

func userErr(msg string, err error) error {
	return userError{msg: msg, err: err}
}
