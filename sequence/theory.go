package sequence

// ChordTables resolves a chord-table id (ChordEvent.Table) to the set of
// semitone offsets from the chord root that make up the chord. The real
// chord-symbol-to-table translation is an out-of-scope external collaborator
// (spec.md §1); this is the minimal pure-function stand-in DynamicPattern and
// PhraseLoop call against, grounded on original_source/src/elapse/elapse_pattern.rs's
// `get_table(ctbl)` call shape. Swappable via ChordTableLookup for tests or a
// richer table set.
type ChordTables map[int16][]int16

// ChordTableLookup is the pure-function signature DynamicPattern/PhraseLoop
// depend on to turn a chord-table id into tones. Defined as a function type
// so the engine doesn't need to import a concrete table set; ElapseStack
// is constructed with one (DefaultChordTables unless the caller overrides it).
type ChordTableLookup func(table int16) []int16

// DefaultChordTables covers the common triads and sevenths; callers needing
// a fuller theory surface can supply their own ChordTableLookup.
var DefaultChordTables = ChordTables{
	0: {0, 4, 7},     // major
	1: {0, 3, 7},     // minor
	2: {0, 4, 7, 10}, // dominant 7th
	3: {0, 3, 7, 10}, // minor 7th
	4: {0, 4, 7, 11}, // major 7th
	5: {0, 3, 6},     // diminished
	6: {0, 4, 8},     // augmented
	7: {0, 5, 7},     // sus4
}

// Lookup returns the table's tones, or a bare major triad if table is unknown
// (mirrors the original's "fall back to a plain triad rather than play
// nothing" behavior for an out-of-range chord-table id).
func (t ChordTables) Lookup(table int16) []int16 {
	if tones, ok := t[table]; ok {
		return tones
	}
	return t[0]
}

var chordTableNames = map[int16]string{
	0: "", 1: "m", 2: "7", 3: "m7", 4: "M7", 5: "dim", 6: "aug", 7: "sus4",
}

var rootNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ChordName renders a (root, table) pair as a short chord symbol, e.g. "Dm7",
// for the UI indicator string (SPEC_FULL.md §12 `gen_chord_name`).
func ChordName(root, table int16) string {
	rn := "?"
	if root >= 0 && int(root) < len(rootNames) {
		rn = rootNames[root]
	}
	tn, ok := chordTableNames[table]
	if !ok {
		tn = "?"
	}
	return rn + tn
}
