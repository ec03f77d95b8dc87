package main

import "time"

const (
	ShutdownTimeout   = 30 * time.Second
	DialKeepAlive     = 30 * time.Second
	ReadHeaderTimeout = 10 * time.Second
	IdleTimeout       = 60 * time.Second
)
