package transcribe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/speechbuddy/internal/types"
	"github.com/xhad/speechbuddy/pkg/transcribe"
)

var _ types.Transcriber = transcribe.Stub{}

func TestStubAlwaysReturnsPlaceholder(t *testing.T) {
	inputs := map[string][]byte{
		"nil":    nil,
		"empty":  {},
		"bytes":  []byte("RIFF....WAVEfmt "),
		"binary": {0x00, 0xff, 0x10, 0x80},
	}

	stub := transcribe.NewStub()
	for name, audio := range inputs {
		t.Run(name, func(t *testing.T) {
			text, err := stub.Transcribe(context.Background(), audio)
			require.NoError(t, err)
			assert.Equal(t, "Simulated transcription of audio.", text)
		})
	}
}
