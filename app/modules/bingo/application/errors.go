package bingoservice

import "errors"

// ErrRequestTimeout means the room did not answer in time. The request may
// still have been applied; clients should resync and retry.
var ErrRequestTimeout = errors.New("room request timed out")

// ErrShuttingDown is returned once the service has begun shutting down.
var ErrShuttingDown = errors.New("bingo service is shutting down")
