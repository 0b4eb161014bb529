package testutil

import (
	"testing"

	"github.com/leapstack-labs/datarush/internal/registry"
	"github.com/leapstack-labs/datarush/internal/templates"
	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdersFlowIsValid(t *testing.T) {
	tmpl, err := templates.Decode([]byte(OrdersFlow), templates.FormatYAML)
	require.NoError(t, err)

	flow, err := templates.ToDataflow(tmpl, registry.Default())
	require.NoError(t, err)
	assert.Equal(t, 3, flow.Len())

	require.Len(t, flow.Parameters(), 1)
	assert.Equal(t, core.ValueBoolean, flow.Parameters()[0].Type)
}
