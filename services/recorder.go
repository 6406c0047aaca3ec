package services

// UpstreamRecorder counts failed provider calls by provider name
type UpstreamRecorder interface {
	RecordUpstreamError(provider string)
}

// NopRecorder discards every observation
type NopRecorder struct{}

// RecordUpstreamError implements UpstreamRecorder
func (NopRecorder) RecordUpstreamError(string) {}
