package storage

import "errors"

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrCreate       = errors.New("create error")
	ErrUnsupported  = errors.New("unsupported storage type")
)
