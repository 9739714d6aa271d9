package main

import (
	"strings"
	"testing"

	"github.com/iltempo/loopian/engine"
	"github.com/iltempo/loopian/repl"
)

func TestProcessBatchInput(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantSuccess bool
		wantExit    bool
	}{
		{
			name:        "empty input",
			input:       "",
			wantSuccess: true,
			wantExit:    false,
		},
		{
			name:        "comments only",
			input:       "# comment\n# another comment\n",
			wantSuccess: true,
			wantExit:    false,
		},
		{
			name:        "empty lines only",
			input:       "\n\n\n",
			wantSuccess: true,
			wantExit:    false,
		},
		{
			name:        "valid command",
			input:       "bpm 120\n",
			wantSuccess: true,
			wantExit:    false,
		},
		{
			name:        "exit command",
			input:       "exit\n",
			wantSuccess: true,
			wantExit:    true,
		},
		{
			name:        "quit command",
			input:       "quit\n",
			wantSuccess: true,
			wantExit:    true,
		},
		{
			name:        "mixed valid and comments",
			input:       "# start engine\nstart\n# done\n",
			wantSuccess: true,
			wantExit:    false,
		},
		{
			name:        "invalid command",
			input:       "invalid_command_xyz\n",
			wantSuccess: false,
			wantExit:    false,
		},
		{
			name:        "valid then invalid commands",
			input:       "start\ninvalid_command\n",
			wantSuccess: false,
			wantExit:    false,
		},
		{
			name:        "invalid then valid commands",
			input:       "invalid_command\nstart\n",
			wantSuccess: false,
			wantExit:    false,
		},
		{
			name:        "exit after error",
			input:       "invalid_command\nexit\n",
			wantSuccess: false,
			wantExit:    true,
		},
		{
			name:        "case insensitive exit",
			input:       "EXIT\n",
			wantSuccess: true,
			wantExit:    true,
		},
		{
			name:        "case insensitive quit",
			input:       "QUIT\n",
			wantSuccess: true,
			wantExit:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := engine.NewElapseStack(nil, nil, nil)
			handler := repl.New(stack)
			reader := strings.NewReader(tt.input)

			gotSuccess, gotExit := processBatchInput(reader, handler)

			if gotSuccess != tt.wantSuccess {
				t.Errorf("processBatchInput() success = %v, want %v", gotSuccess, tt.wantSuccess)
			}
			if gotExit != tt.wantExit {
				t.Errorf("processBatchInput() exit = %v, want %v", gotExit, tt.wantExit)
			}
		})
	}
}

func TestProcessBatchInput_CommandExecution(t *testing.T) {
	stack := engine.NewElapseStack(nil, nil, nil)
	handler := repl.New(stack)

	input := "bpm 90\n"
	reader := strings.NewReader(input)
	success, exit := processBatchInput(reader, handler)

	if !success {
		t.Error("Expected bpm command to succeed")
	}
	if exit {
		t.Error("Expected no exit for bpm command")
	}
}

func TestProcessBatchInput_MultipleCommands(t *testing.T) {
	stack := engine.NewElapseStack(nil, nil, nil)
	handler := repl.New(stack)

	input := `# Set up engine
bpm 100
beat 4/4
# Start playing
start
`
	reader := strings.NewReader(input)
	success, exit := processBatchInput(reader, handler)

	if !success {
		t.Error("Expected all commands to succeed")
	}
	if exit {
		t.Error("Expected no exit")
	}
}
