// Package events declares the events published on the eventbus while a
// request is served. Start and finish events of one request share the request
// context, so subscribers can pair them through reqid.
package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the server receives a request.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted after the response is written.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}
