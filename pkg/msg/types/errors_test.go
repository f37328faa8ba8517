package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportError_UnwrapsToUnderlyingError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := NewTransportError("dial", underlying)
	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "dial")
}

func TestNewTransportError_NilErrIsNil(t *testing.T) {
	assert.Nil(t, NewTransportError("dial", nil))
}

func TestPubSubMessage_CloneIsIndependentBackingArray(t *testing.T) {
	original := PubSubMessage{Topic: "orders", Payload: []byte("created")}
	clone := original.Clone()

	clone.Payload[0] = 'X'
	assert.Equal(t, "created", string(original.Payload))
	assert.Equal(t, "Xreated", string(clone.Payload))
}
