// Package transcribe turns recorded audio into text.
package transcribe

import "context"

// Placeholder is what Stub returns for every payload.
const Placeholder = "Simulated transcription of audio."

// Stub stands in for a speech-to-text engine. It ignores the audio entirely.
type Stub struct{}

func NewStub() Stub { return Stub{} }

func (Stub) Transcribe(_ context.Context, _ []byte) (string, error) {
	return Placeholder, nil
}
