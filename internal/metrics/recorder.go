package metrics

import "time"

// Recorder abstracts metric emission so services never depend on
// prometheus directly and tests can pass a noop.
type Recorder interface {
	// Device flow
	RecordDeviceRegistered(success bool)
	RecordDeviceAuthorized()
	RecordDeviceCodeValidation(result string) // success, pending, invalid
	RecordSweepDeleted(count int64)
	SetActiveDevices(total, pending int64)

	// Tokens
	RecordTokenIssued(tokenType, grantType string, generationTime time.Duration)
	RecordTokenRefresh(success bool)

	// HTTP
	RecordHTTPRequest(method, path, status string, duration time.Duration)
}
