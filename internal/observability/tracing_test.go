package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracing_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := InitTracing(context.Background(), nil, TracingConfig{})

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInitTracing_ExportsSpans(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	shutdown, err := InitTracing(ctx, nil, TracingConfig{Enabled: true, ServiceName: "rebuildfund-test", SampleRatio: 1, Writer: &buf})
	require.NoError(t, err)

	_, span := Tracer().Start(ctx, "invest")
	span.End()
	require.NoError(t, shutdown(ctx))

	assert.Contains(t, buf.String(), `"Name":"invest"`)
	assert.Contains(t, buf.String(), "rebuildfund-test")
}

func TestClampRatio(t *testing.T) {
	assert.Equal(t, 0.0, clampRatio(-1))
	assert.Equal(t, 0.5, clampRatio(0.5))
	assert.Equal(t, 1.0, clampRatio(3))
}
