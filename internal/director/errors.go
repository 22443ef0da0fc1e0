package director

import "errors"

var (
	ErrEmptyCompletion = errors.New("empty completion")
	ErrBadStatus       = errors.New("unexpected response status")
	ErrNoInterval      = errors.New("no interval in completion")
)
