package message

import "testing"

func TestCtrlKindString(t *testing.T) {
	cases := map[CtrlKind]string{
		CtrlStart:    "start",
		CtrlStop:     "stop",
		CtrlResume:   "resume",
		CtrlPanic:    "panic",
		CtrlQuit:     "quit",
		CtrlKind(99): "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("CtrlKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestRitSentinelsAreDistinctFromLiteralTargets(t *testing.T) {
	if TargetAtempo == TargetFermata {
		t.Fatal("TargetAtempo and TargetFermata must be distinct sentinels")
	}
	if TargetFermata != 0 {
		t.Errorf("TargetFermata = %d, want 0", TargetFermata)
	}
	if TargetAtempo != -1 {
		t.Errorf("TargetAtempo = %d, want -1", TargetAtempo)
	}
}

func TestRitStrengthOrdering(t *testing.T) {
	// Poco (barely noticeable) must retain more of the original tempo than
	// Nrm, which in turn retains more than Mlt (most dramatic).
	if !(RitPoco > RitNrm && RitNrm > RitMlt) {
		t.Errorf("expected RitPoco(%d) > RitNrm(%d) > RitMlt(%d)", RitPoco, RitNrm, RitMlt)
	}
}

func TestMessageVariantsImplementMarker(t *testing.T) {
	var msgs = []Message{
		Ctrl{Kind: CtrlStart},
		Sync{Group: SyncAll},
		Rit{Strength: RitNrm, Bars: 2, Target: TargetAtempo},
		Set{Key: SetBPM, Value: 120},
		SetBeat{Num: 3, Den: 4},
		Phr{Part: 0, Variation: 0},
		PhrX{Part: 0, Variation: 0},
		Cmp{Part: 0},
		CmpX{Part: 0},
		Ana{Part: 0, Variation: 0},
		AnaX{Part: 0, Variation: 0},
	}
	for i, m := range msgs {
		if m == nil {
			t.Errorf("message at index %d is nil", i)
		}
	}
}

func TestSyncGroupZeroValueIsOnePart(t *testing.T) {
	var s Sync
	if s.Group != SyncOnePart {
		t.Errorf("zero-value Sync.Group = %v, want SyncOnePart", s.Group)
	}
}
