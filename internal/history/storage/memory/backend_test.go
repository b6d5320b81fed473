package memory_test

import (
	"testing"

	"github.com/picatz/miktos"
	"github.com/picatz/miktos/internal/history/storage/memory"
	"github.com/picatz/miktos/internal/history/storage/tests"
)

func TestBackend(t *testing.T) {
	tests.BackendSuite(t, memory.NewBackend[string, string]())
	tests.BackendSuite_messages(t, memory.NewBackend[string, miktos.Message]())
}
