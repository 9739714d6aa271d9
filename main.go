package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/iltempo/loopian/engine"
	"github.com/iltempo/loopian/midi"
	"github.com/iltempo/loopian/repl"
	"github.com/mattn/go-isatty"
)

// tickInterval is how often the driving goroutine calls ElapseStack.Periodic.
// Coarser than a typical audio buffer since this engine schedules MIDI
// events, not samples; fine-grained enough that a 1920-tick bar at a brisk
// 200bpm (tps=1600) still lands ticks within a few milliseconds of when
// TickGen says they're due.
const tickInterval = 5 * time.Millisecond

// isTerminal returns true if stdin is a terminal (TTY).
func isTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// processBatchInput reads and executes commands from reader.
// Returns (success, shouldExit) where success indicates no errors occurred
// and shouldExit indicates if an explicit exit command was found.
func processBatchInput(reader io.Reader, handler *repl.Handler) (bool, bool) {
	scanner := bufio.NewScanner(reader)
	hadErrors := false
	shouldExit := false

	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			fmt.Println(line)
			continue
		}
		if strings.ToLower(line) == "exit" || strings.ToLower(line) == "quit" {
			shouldExit = true
			continue
		}

		fmt.Println(">", line)
		if err := handler.ProcessCommand(line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			hadErrors = true
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		return false, shouldExit
	}

	return !hadErrors, shouldExit
}

func main() {
	scriptFile := flag.String("script", "", "execute commands from file")
	flag.Parse()

	ports, err := midi.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing MIDI ports: %v\n", err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Fprintf(os.Stderr, "No MIDI output ports found\n")
		os.Exit(1)
	}

	fmt.Println("Available MIDI ports:")
	for i, port := range ports {
		fmt.Printf("  %d: %s\n", i, port)
	}

	var portIndex int
	inBatchMode := *scriptFile != "" || !isTerminal()

	if len(ports) == 1 || inBatchMode {
		portIndex = 0
		fmt.Printf("\nUsing port %d: %s\n\n", portIndex, ports[portIndex])
	} else {
		fmt.Print("\n")
		rl, err := readline.New(fmt.Sprintf("Select MIDI port (0-%d): ", len(ports)-1))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating readline: %v\n", err)
			os.Exit(1)
		}
		defer rl.Close()

		input, err := rl.Readline()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			os.Exit(1)
		}

		input = strings.TrimSpace(input)
		portIndex, err = strconv.Atoi(input)
		if err != nil || portIndex < 0 || portIndex >= len(ports) {
			fmt.Fprintf(os.Stderr, "Invalid port selection: %s\n", input)
			os.Exit(1)
		}
		fmt.Printf("Using port %d: %s\n\n", portIndex, ports[portIndex])
	}

	midiOut, err := midi.Open(portIndex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening MIDI port: %v\n", err)
		os.Exit(1)
	}
	defer midiOut.Close()

	// MIDI input is optional: a Flow part simply never receives anything to
	// react to if none is available. midiIn is left a literal nil
	// engine.MidiReceiver (not a typed-nil *midi.Input) when no device opens,
	// so ElapseStack's own nil check works.
	var midiConn *midi.Input
	var midiIn engine.MidiReceiver
	if inPorts, err := midi.ListInPorts(); err == nil && len(inPorts) > 0 {
		if in, err := midi.OpenInput(0); err == nil {
			midiConn = in
			midiIn = in
			fmt.Printf("Listening for MIDI input on: %s\n", inPorts[0])
		}
	}

	stack := engine.NewElapseStack(midiOut, midiIn, nil)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				if stack.Periodic(now) {
					close(done)
					return
				}
			}
		}
	}()

	cleanup := func() {
		select {
		case <-done:
		default:
			close(done)
		}
		midiOut.Close()
		if midiConn != nil {
			midiConn.Close()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cleanup()
		os.Exit(0)
	}()

	fmt.Println("Engine ready. Type 'start' to begin, 'help' for commands, 'quit' to exit.")
	fmt.Println()

	cmdHandler := repl.New(stack)

	if *scriptFile != "" {
		f, err := os.Open(*scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script file: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()

		success, shouldExit := processBatchInput(f, cmdHandler)
		if shouldExit {
			cleanup()
			if success {
				os.Exit(0)
			}
			os.Exit(1)
		}
		fmt.Println("\nScript completed. Engine continues running. Press Ctrl+C to exit.")
		<-done
		return
	}

	if isTerminal() {
		if err := cmdHandler.ReadLoop(os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading commands: %v\n", err)
			os.Exit(1)
		}
	} else {
		success, shouldExit := processBatchInput(os.Stdin, cmdHandler)
		if shouldExit {
			cleanup()
			if success {
				os.Exit(0)
			}
			os.Exit(1)
		}
		fmt.Println("\nBatch commands completed. Engine continues running. Press Ctrl+C to exit.")
		<-done
		return
	}

	cleanup()
	fmt.Println("Goodbye!")
}
