// Package testutil provides testing utilities and helpers for shell tests.
package testutil

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/medsh/internal/editor"
	"github.com/GriffinCanCode/medsh/internal/history"
)

// MockLauncher is a mock implementation of shell.Launcher for testing.
type MockLauncher struct {
	mock.Mock
}

// Launch mocks the Launch method.
func (m *MockLauncher) Launch(ctx context.Context, args []string, background bool) error {
	return m.Called(ctx, args, background).Error(0)
}

// NewMockLauncher creates a mock launcher whose expectations are asserted
// when the test ends.
func NewMockLauncher(t *testing.T) *MockLauncher {
	t.Helper()
	m := new(MockLauncher)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// ScriptedReader returns canned editor results in order, then io.EOF.
type ScriptedReader struct {
	Results []editor.Result
	Prompts []string
}

// Lines builds a reader that submits each line without recalling history.
func Lines(lines ...string) *ScriptedReader {
	r := &ScriptedReader{}
	for _, l := range lines {
		r.Results = append(r.Results, editor.Result{Line: l, Index: -1})
	}
	return r
}

// ReadLine implements shell.LineReader.
func (r *ScriptedReader) ReadLine(prompt string, _ *history.Ring) (editor.Result, error) {
	r.Prompts = append(r.Prompts, prompt)
	if len(r.Results) == 0 {
		return editor.Result{Index: -1}, io.EOF
	}
	res := r.Results[0]
	r.Results = r.Results[1:]
	return res, nil
}
