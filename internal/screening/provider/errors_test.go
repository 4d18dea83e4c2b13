package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"screener/pkg/platform/sentinel"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"timeout", NewTransportError("ofac", 0, true, context.DeadlineExceeded), KindTimeout},
		{"status", NewTransportError("ofac", 502, false, nil), KindTransport},
		{"application", NewApplicationError("ofac", "invalid api key"), KindApplication},
		{"contract", NewContractError("ofac", "missing case 2"), KindContract},
		{"wrapped application", fmt.Errorf("screen: %w", NewApplicationError("ofac", "x")), KindApplication},
		{"foreign", errors.New("boom"), KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorChains(t *testing.T) {
	te := NewTransportError("ofac", 0, true, context.DeadlineExceeded)
	assert.ErrorIs(t, te, sentinel.ErrUnavailable)
	assert.ErrorIs(t, te, context.DeadlineExceeded)
	assert.Contains(t, te.Error(), "timed out")

	assert.ErrorIs(t, NewTransportError("ofac", 500, false, nil), sentinel.ErrUnavailable)
	assert.Contains(t, NewTransportError("ofac", 500, false, nil).Error(), "500")

	ae := NewApplicationError("ofac", "quota exceeded")
	assert.ErrorIs(t, ae, sentinel.ErrRejected)
	assert.Equal(t, "provider ofac error: quota exceeded", ae.Error())
}
