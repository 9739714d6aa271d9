// Package repl is the line-oriented command shell that drives
// engine.ElapseStack: a stand-in for the real chord/phrase-notation text
// language, which spec.md places out of scope. Adapted from the teacher's
// commands.Handler — same dispatch-by-first-word shape and ReadLoop idiom —
// rebuilt to construct message.Message values instead of mutating a
// step-sequencer Pattern (SPEC_FULL.md §10).
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iltempo/loopian/engine"
	"github.com/iltempo/loopian/lpnlib"
	"github.com/iltempo/loopian/message"
	"github.com/iltempo/loopian/sequence"
)

// Handler parses command lines and enqueues the resulting messages onto an
// engine.ElapseStack.
type Handler struct {
	stack *engine.ElapseStack
}

// New creates a Handler driving stack.
func New(stack *engine.ElapseStack) *Handler {
	return &Handler{stack: stack}
}

// ProcessCommand parses and executes a single command line.
func (h *Handler) ProcessCommand(cmdLine string) error {
	cmdLine = strings.TrimSpace(cmdLine)
	if cmdLine == "" {
		return nil
	}
	fields := strings.Fields(cmdLine)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "start":
		h.stack.Enqueue(message.Ctrl{Kind: message.CtrlStart})
	case "stop":
		h.stack.Enqueue(message.Ctrl{Kind: message.CtrlStop})
	case "resume":
		h.stack.Enqueue(message.Ctrl{Kind: message.CtrlResume})
	case "panic":
		h.stack.Enqueue(message.Ctrl{Kind: message.CtrlPanic})
	case "quit":
		h.stack.Enqueue(message.Ctrl{Kind: message.CtrlQuit})
	case "sync":
		return h.handleSync(args)
	case "bpm":
		return h.handleBpm(args)
	case "beat":
		return h.handleBeat(args)
	case "rit":
		return h.handleRit(args)
	case "key":
		return h.handleSetInt(args, message.SetKeyNote, "key <note-number>")
	case "turnnote":
		return h.handleSetInt(args, message.SetTurnNote, "turnnote <note-number>")
	case "measure":
		return h.handleSetInt(args, message.SetCurrentMeasure, "measure <n>")
	case "phr":
		return h.handlePhr(args)
	case "phrx":
		return h.handlePhrX(args)
	case "cmp":
		return h.handleCmp(args)
	case "cmpx":
		return h.handleCmpX(args)
	case "ana":
		return h.handleAna(args)
	case "anax":
		return h.handleAnaX(args)
	case "vari":
		return h.handleVari(args)
	case "help":
		return h.handleHelp()
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
	return nil
}

func (h *Handler) handleSync(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sync <part-number>|all|left|right")
	}
	switch strings.ToLower(args[0]) {
	case "all":
		h.stack.Enqueue(message.Sync{Group: message.SyncAll})
	case "left":
		h.stack.Enqueue(message.Sync{Group: message.SyncLeft})
	case "right":
		h.stack.Enqueue(message.Sync{Group: message.SyncRight})
	default:
		part, err := parsePart(args[0])
		if err != nil {
			return err
		}
		h.stack.Enqueue(message.Sync{Group: message.SyncOnePart, Part: part})
	}
	return nil
}

func (h *Handler) handleBpm(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: bpm <number>")
	}
	bpm, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid bpm: %s", args[0])
	}
	h.stack.Enqueue(message.Set{Key: message.SetBPM, Value: int32(bpm)})
	return nil
}

func (h *Handler) handleBeat(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: beat <num>/<den> (e.g. 'beat 3/4')")
	}
	nd := strings.SplitN(args[0], "/", 2)
	if len(nd) != 2 {
		return fmt.Errorf("usage: beat <num>/<den> (e.g. 'beat 3/4')")
	}
	num, err1 := strconv.Atoi(nd[0])
	den, err2 := strconv.Atoi(nd[1])
	if err1 != nil || err2 != nil || den == 0 {
		return fmt.Errorf("invalid meter: %s", args[0])
	}
	h.stack.Enqueue(message.SetBeat{Num: int32(num), Den: int32(den)})
	return nil
}

// handleRit: rit <poco|nrm|mlt|<1-100>> <bars> <bpm|atempo|fermata>
func (h *Handler) handleRit(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: rit <poco|nrm|mlt|1-100> <bars> <bpm|atempo|fermata>")
	}
	var strength int32
	switch strings.ToLower(args[0]) {
	case "poco":
		strength = message.RitPoco
	case "nrm":
		strength = message.RitNrm
	case "mlt":
		strength = message.RitMlt
	default:
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid rit strength: %s", args[0])
		}
		strength = int32(v)
	}
	bars, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid bar count: %s", args[1])
	}
	var target int16
	switch strings.ToLower(args[2]) {
	case "atempo":
		target = message.TargetAtempo
	case "fermata":
		target = message.TargetFermata
	default:
		v, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid rit target: %s", args[2])
		}
		target = int16(v)
	}
	h.stack.Enqueue(message.Rit{Strength: strength, Bars: int32(bars), Target: target})
	return nil
}

func (h *Handler) handleSetInt(args []string, key message.SetKey, usage string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", usage)
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid value: %s", args[0])
	}
	h.stack.Enqueue(message.Set{Key: key, Value: int32(v)})
	return nil
}

func (h *Handler) handlePhr(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: phr <part> <variation> <fixture>")
	}
	part, err := parsePart(args[0])
	if err != nil {
		return err
	}
	vari, err := parseVariation(args[1])
	if err != nil {
		return err
	}
	data, err := sequence.LoadPhraseFile(args[2])
	if err != nil {
		return err
	}
	h.stack.Enqueue(message.Phr{Part: part, Variation: vari, Data: *data})
	return nil
}

func (h *Handler) handlePhrX(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: phrx <part> <variation>")
	}
	part, err := parsePart(args[0])
	if err != nil {
		return err
	}
	vari, err := parseVariation(args[1])
	if err != nil {
		return err
	}
	h.stack.Enqueue(message.PhrX{Part: part, Variation: vari})
	return nil
}

func (h *Handler) handleCmp(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: cmp <part> <fixture>")
	}
	part, err := parsePart(args[0])
	if err != nil {
		return err
	}
	data, err := sequence.LoadChordFile(args[1])
	if err != nil {
		return err
	}
	h.stack.Enqueue(message.Cmp{Part: part, Data: *data})
	return nil
}

func (h *Handler) handleCmpX(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cmpx <part>")
	}
	part, err := parsePart(args[0])
	if err != nil {
		return err
	}
	h.stack.Enqueue(message.CmpX{Part: part})
	return nil
}

func (h *Handler) handleAna(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: ana <part> <variation> <fixture>")
	}
	part, err := parsePart(args[0])
	if err != nil {
		return err
	}
	vari, err := parseVariation(args[1])
	if err != nil {
		return err
	}
	data, err := sequence.LoadAnalysisFile(args[2])
	if err != nil {
		return err
	}
	h.stack.Enqueue(message.Ana{Part: part, Variation: vari, Data: *data})
	return nil
}

func (h *Handler) handleAnaX(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: anax <part> <variation>")
	}
	part, err := parsePart(args[0])
	if err != nil {
		return err
	}
	vari, err := parseVariation(args[1])
	if err != nil {
		return err
	}
	h.stack.Enqueue(message.AnaX{Part: part, Variation: vari})
	return nil
}

func (h *Handler) handleVari(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: vari <part> <variation>")
	}
	part, err := parsePart(args[0])
	if err != nil {
		return err
	}
	vari, err := parseVariation(args[1])
	if err != nil {
		return err
	}
	p := h.stack.Part(part)
	if p == nil {
		return fmt.Errorf("no such part: %d", part)
	}
	p.ReserveVariation(vari)
	return nil
}

func parsePart(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= lpnlib.AllPartCount {
		return 0, fmt.Errorf("invalid part: %s", s)
	}
	return n, nil
}

func parseVariation(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= lpnlib.MaxPhrase {
		return 0, fmt.Errorf("invalid variation: %s", s)
	}
	return n, nil
}

func (h *Handler) handleHelp() error {
	fmt.Println(`Available commands:
  start / stop / resume / panic / quit
  sync <part>|all|left|right
  bpm <number>
  beat <num>/<den>
  rit <poco|nrm|mlt|1-100> <bars> <bpm|atempo|fermata>
  key <note-number>
  turnnote <note-number>
  measure <n>
  phr <part> <variation> <fixture>
  phrx <part> <variation>
  cmp <part> <fixture>
  cmpx <part>
  ana <part> <variation> <fixture>
  anax <part> <variation>
  vari <part> <variation>
  help
  quit`)
	return nil
}

// ReadLoop reads commands from reader until EOF or a "quit" line.
func (h *Handler) ReadLoop(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	fmt.Print("> ")
	for scanner.Scan() {
		line := scanner.Text()
		if err := h.ProcessCommand(line); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		if strings.TrimSpace(strings.ToLower(line)) == "quit" {
			return nil
		}
		fmt.Print("> ")
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}
