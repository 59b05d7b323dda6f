package translation

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// mockTranslator mocks Translator with a function field
type mockTranslator struct {
	TranslateFunc func(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	mu    sync.Mutex
	calls []string
}

func (m *mockTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, text, sourceLang, targetLang)
	}
	return "EN(" + text + ")", nil
}

func (m *mockTranslator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockCmdRunner is a mock implementation of CmdRunner
type mockCmdRunner struct {
	mock.Mock
}

func (m *mockCmdRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	arguments := m.Called(ctx, name, args)
	return arguments.Get(0).([]byte), arguments.Error(1)
}
