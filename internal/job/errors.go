package job

import "errors"

var (
	ErrJobNotFound = errors.New("job not found")
	ErrBusy        = errors.New("all workers are busy")
	ErrEmptyURL    = errors.New("no url provided")
)
