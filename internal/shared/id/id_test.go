package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()
	assert.NotEqual(t, gen.Generate().String(), gen.Generate().String())
}

func TestTypedIDs(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		prefix string
	}{
		{"request", NewRequestID().String(), RequestPrefix},
		{"login", NewLoginID().String(), LoginPrefix},
		{"run", NewRunID().String(), RunPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.value, tt.prefix+"_"))
			assert.True(t, IsValid(tt.value, tt.prefix))
			assert.False(t, IsValid(tt.value, "other"))
		})
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewLoginID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("login_not-a-ulid")
	assert.Error(t, err)
}

func TestConcurrentGeneration(t *testing.T) {
	const n = 200
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := NewRequestID().String()
			mu.Lock()
			seen[v] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
