package events

import "time"

// GraphQLStart is emitted when the server starts handling one operation of a
// request.
type GraphQLStart struct {
	Query         string
	OperationName string
}

// GraphQLFinish is emitted after the response of an operation is built.
// Local is set when the data was answered without subgraphs.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Local         bool
	Errors        []error
	Duration      time.Duration
}
