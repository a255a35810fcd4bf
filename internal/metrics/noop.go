package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder.
// All methods are empty, providing zero overhead when metrics are disabled.
type NoopMetrics struct{}

var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordDeviceRegistered(success bool)      {}
func (n *NoopMetrics) RecordDeviceAuthorized()                  {}
func (n *NoopMetrics) RecordDeviceCodeValidation(result string) {}
func (n *NoopMetrics) RecordSweepDeleted(count int64)           {}
func (n *NoopMetrics) SetActiveDevices(total, pending int64)    {}

func (n *NoopMetrics) RecordTokenIssued(
	tokenType, grantType string,
	generationTime time.Duration,
) {
}

func (n *NoopMetrics) RecordTokenRefresh(success bool) {}

func (n *NoopMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {}
