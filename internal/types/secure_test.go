package types

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretString_NeverLeaks(t *testing.T) {
	s := SecretString("postgres://user:hunter2@db:5432/wakebell")

	assert.Equal(t, "***REDACTED***", s.String())
	assert.NotContains(t, fmt.Sprintf("url=%s val=%v", s, s), "hunter2")

	data, err := json.Marshal(struct {
		URL SecretString `json:"url"`
	}{URL: s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), "***REDACTED***")
}

func TestSecretString_Unmask(t *testing.T) {
	s := SecretString("raw-value")
	assert.Equal(t, "raw-value", s.Unmask())
}
