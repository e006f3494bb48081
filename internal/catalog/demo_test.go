package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemo_SeedsOneZone(t *testing.T) {
	// Given: the demo catalog
	m := Demo()

	// When: walking it
	items := m.Walk("demo")

	// Then: the zone root, six collections and five objects exist
	assert.Equal(t, []string{"demo"}, m.Zones())
	assert.Len(t, items, 12)

	s := m.Open("demo")
	defer func() { _ = s.Close() }()
	q1, err := s.Stat(context.Background(), "/demo/home/alice/reports/q1.pdf")
	require.NoError(t, err)
	assert.Equal(t, KindDataObject, q1.Kind)

	acls, err := s.ACLs(context.Background(), q1)
	require.NoError(t, err)
	assert.Len(t, acls, 2)
}
