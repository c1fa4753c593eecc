package domain

import "errors"

var (
	// ErrQuotaExhausted means the daily API budget is spent; skip remaining work.
	ErrQuotaExhausted = errors.New("quota exhausted")
	// ErrExternalCall wraps transient provider failures scoped to one source or item.
	ErrExternalCall = errors.New("external call failed")
	// ErrDispatch means the notification channel rejected or missed a message.
	ErrDispatch = errors.New("dispatch failed")
	// ErrMessageRejected means the channel refused this particular message;
	// other messages may still go through.
	ErrMessageRejected = errors.New("message rejected")
	// ErrPersistence aborts the current cycle.
	ErrPersistence = errors.New("persistence failed")

	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid dispatch transition")
	ErrCycleInProgress   = errors.New("cycle already in progress")
)
