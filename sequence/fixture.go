// fixture.go is a JSON loader for phrase/chord/analysis fixtures, adapted
// from the teacher's sequence/persistence.go: same PatternsDir convention
// and typed-struct Marshal/Unmarshal shape, repointed at the new event
// types. No ad-hoc JSON querying is needed here (the shape is fully known
// at compile time), so this stays on encoding/json rather than the
// teacher's dropped gjson/sjson dependency (see DESIGN.md).
package sequence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FixturesDir is where phrase/chord/analysis JSON fixtures are read from.
const FixturesDir = "fixtures"

// phraseEventFile/chordEventFile/analysisEventFile mirror PhraseEvent/
// ChordEvent/AnalysisEvent field-for-field; kept distinct from the in-memory
// types so the wire format can evolve without touching engine code.
type phraseEventFile struct {
	Tick     int32 `json:"tick"`
	Kind     int   `json:"kind"`
	Note     int16 `json:"note"`
	Duration int32 `json:"duration"`
	Velocity int16 `json:"velocity"`
	EachDur  int32 `json:"each_dur,omitempty"`
	Trns     int32 `json:"trns,omitempty"`
}

type phraseFile struct {
	WholeTick int32             `json:"whole_tick"`
	Events    []phraseEventFile `json:"events"`
}

// LoadPhraseFile reads a phrase fixture from FixturesDir/<name>.json.
func LoadPhraseFile(name string) (*PhraseData, error) {
	data, err := os.ReadFile(filepath.Join(FixturesDir, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read phrase fixture %q: %w", name, err)
	}
	var pf phraseFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse phrase fixture %q: %w", name, err)
	}
	events := make([]PhraseEvent, len(pf.Events))
	for i, e := range pf.Events {
		events[i] = PhraseEvent{
			Tick: e.Tick, Kind: EventKind(e.Kind), Note: e.Note,
			Duration: e.Duration, Velocity: e.Velocity, EachDur: e.EachDur, Trns: e.Trns,
		}
	}
	return NewPhraseData(events, pf.WholeTick), nil
}

type chordEventFile struct {
	Tick  int32 `json:"tick"`
	Root  int16 `json:"root"`
	Table int16 `json:"table"`
}

type chordFile struct {
	WholeTick int32            `json:"whole_tick"`
	Events    []chordEventFile `json:"events"`
}

// LoadChordFile reads a chord-progression fixture from FixturesDir/<name>.json.
func LoadChordFile(name string) (*ChordData, error) {
	data, err := os.ReadFile(filepath.Join(FixturesDir, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read chord fixture %q: %w", name, err)
	}
	var cf chordFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse chord fixture %q: %w", name, err)
	}
	events := make([]ChordEvent, len(cf.Events))
	for i, e := range cf.Events {
		events[i] = ChordEvent{Tick: e.Tick, Root: e.Root, Table: e.Table}
	}
	return NewChordData(events, cf.WholeTick), nil
}

type analysisEventFile struct {
	Tick  int32 `json:"tick"`
	Kind  int   `json:"kind"`
	Value int16 `json:"value,omitempty"`
}

// LoadAnalysisFile reads an analysis-hint fixture from FixturesDir/<name>.json.
func LoadAnalysisFile(name string) (*AnalysisData, error) {
	data, err := os.ReadFile(filepath.Join(FixturesDir, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis fixture %q: %w", name, err)
	}
	var events []analysisEventFile
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse analysis fixture %q: %w", name, err)
	}
	out := make([]AnalysisEvent, len(events))
	for i, e := range events {
		out[i] = AnalysisEvent{Tick: e.Tick, Kind: AnalysisKind(e.Kind), Value: e.Value}
	}
	return NewAnalysisData(out), nil
}

// ListFixtures returns the names of all phrase/chord/analysis fixtures found
// under FixturesDir.
func ListFixtures() ([]string, error) {
	if _, err := os.Stat(FixturesDir); os.IsNotExist(err) {
		return []string{}, nil
	}
	entries, err := os.ReadDir(FixturesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		n := entry.Name()
		if len(n) > 5 && n[len(n)-5:] == ".json" {
			names = append(names, n[:len(n)-5])
		}
	}
	return names, nil
}
