package cooldown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeshanjun/pollux/internal/credential"
)

func key(id string) credential.Key {
	return credential.Key{Provider: credential.ProviderGeminiCLI, Identity: id}
}

func TestHeap_DrainReady_OrdersByReadyAt(t *testing.T) {
	h := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	h.Push(key("c"), credential.ProviderGeminiCLI, base.Add(30*time.Second))
	h.Push(key("a"), credential.ProviderGeminiCLI, base.Add(10*time.Second))
	h.Push(key("b"), credential.ProviderGeminiCLI, base.Add(20*time.Second))

	require.Equal(t, 3, h.Len())

	drained := h.DrainReady(base.Add(25 * time.Second))
	require.Len(t, drained, 2)
	assert.Equal(t, "a", drained[0].Key.Identity)
	assert.Equal(t, "b", drained[1].Key.Identity)
	assert.Equal(t, 1, h.Len())

	next, ok := h.NextReadyAt()
	require.True(t, ok)
	assert.Equal(t, base.Add(30*time.Second), next)
}

func TestHeap_Push_DedupsByKey(t *testing.T) {
	h := New()
	now := time.Now()

	h.Push(key("same"), credential.ProviderCodex, now.Add(time.Minute))
	h.Push(key("same"), credential.ProviderCodex, now.Add(5*time.Second))

	assert.Equal(t, 1, h.Len())
	next, ok := h.NextReadyAt()
	require.True(t, ok)
	assert.Equal(t, now.Add(5*time.Second), next)
}

func TestHeap_Remove(t *testing.T) {
	h := New()
	now := time.Now()
	h.Push(key("x"), credential.ProviderGeminiCLI, now.Add(time.Minute))

	assert.True(t, h.Contains(key("x")))
	assert.True(t, h.Remove(key("x")))
	assert.False(t, h.Contains(key("x")))
	assert.False(t, h.Remove(key("x")))
	assert.Equal(t, 0, h.Len())
}

func TestHeap_EmptyHasNoNextReadyAt(t *testing.T) {
	h := New()
	_, ok := h.NextReadyAt()
	assert.False(t, ok)
}
