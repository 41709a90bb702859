package debug

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToggle_DefaultsToInitial(t *testing.T) {
	assert.False(t, NewToggle(false).Enabled())
	assert.True(t, NewToggle(true).Enabled())
}

func TestToggle_Idempotent(t *testing.T) {
	tg := NewToggle(false)

	tg.Enable()
	tg.Enable()
	assert.True(t, tg.Enabled())

	tg.Disable()
	tg.Disable()
	assert.False(t, tg.Enabled())
}

func TestToggle_ConcurrentAccess(t *testing.T) {
	tg := NewToggle(false)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tg.Enable()
		}()
		go func() {
			defer wg.Done()
			_ = tg.Enabled()
		}()
	}
	wg.Wait()

	assert.True(t, tg.Enabled())
}
