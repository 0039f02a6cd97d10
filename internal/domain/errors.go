package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrTransport      = errors.New("market transport failure")
	ErrUnavailable    = errors.New("balance unavailable")
	ErrConcurrencyCap = errors.New("concurrency cap reached")
	ErrEngineRunning  = errors.New("engine already running")
	ErrEngineStopped  = errors.New("engine not running")
	ErrPurseTooLow    = errors.New("purse at or below safety reserve")
	ErrLockHeld       = errors.New("lock already held")
)
