package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrapeErrorFormatting(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewNetwork("load", "fetch failed", cause)

	assert.Equal(t, "[network] load: fetch failed - connection refused", err.Error())
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, err.IsRetryable())

	cfgErr := NewConfiguration("unknown store driver", nil)
	assert.Equal(t, "[configuration] config: unknown store driver", cfgErr.Error())
	assert.False(t, cfgErr.IsRetryable())
}

func TestScrapeErrorAs(t *testing.T) {
	var wrapped error = NewStorage("replace", "insert outlet", stderrors.New("disk full"))

	var se *ScrapeError
	assert.True(t, stderrors.As(wrapped, &se))
	assert.Equal(t, ErrorTypeStorage, se.Type)
	assert.False(t, se.Time.IsZero())
}
