package session

import "errors"

var errHandleClosed = errors.New("session handle is closed")
