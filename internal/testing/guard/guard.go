// Package guard switches the process into test mode when imported, so
// constructors that check app.InTestMode skip network side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SIZANG_TEST_MODE") == "" {
			_ = os.Setenv("SIZANG_TEST_MODE", "1")
		}
	})
}
