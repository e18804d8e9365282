package main

import (
	"net/http"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

var externalHTTPClient = &http.Client{
	Timeout: defaultHTTPTimeout,
}

// configureExternalHTTPClient applies the configured timeout and returns
// the value in effect.
func configureExternalHTTPClient(seconds int) time.Duration {
	if seconds > 0 {
		externalHTTPClient.Timeout = time.Duration(seconds) * time.Second
	}
	return externalHTTPClient.Timeout
}
