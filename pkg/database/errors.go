package database

import "errors"

var ErrNotReady = errors.New("database not ready")
