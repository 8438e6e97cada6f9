package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, TraceIDFromContext(ctx))

	ctx = WithTraceID(ctx, "trace-77")
	assert.Equal(t, "trace-77", TraceIDFromContext(ctx))
}

func TestGenerateTraceID_Unique(t *testing.T) {
	a := GenerateTraceID()
	b := GenerateTraceID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestGetLogger_DefaultsWhenUninitialized(t *testing.T) {
	assert.NotNil(t, GetLogger())
}
