package engine

import (
	"time"

	"github.com/iltempo/loopian/lpnlib"
)

// Meter is a time signature, numerator over denominator (e.g. {4, 4}).
type Meter struct {
	Num int32
	Den int32
}

// CrntMsrTick is the time cursor every Elapse.Process call receives: the
// current measure, the tick within that measure, and the tick length of
// that measure under the meter in effect (meter changes mid-performance
// change this, so callers must read it fresh each Process rather than
// caching it).
type CrntMsrTick struct {
	Msr           int32
	Tick          int32
	TickForOneMsr int32
}

// RitCurve is the strategy interface for a ritardando/accelerando curve.
// Four implementations are available (Linear, LinearPrecise, Sigmoid, Ctrl);
// TickGen is constructed with one and defers all rit tick math to it.
type RitCurve interface {
	// SetRit arms the curve. ratio is 0-100 (0: stop dead, 100: no-op),
	// bar is how many barlines to let the rit run across, bpm/startTime/
	// startTick/tickForOneMsr snapshot state at the moment of arming.
	SetRit(ratio, bar int32, bpm float32, startTime time.Time, startTick, tickForOneMsr int32)
	// CalcTickRit is polled every tick while the rit is active. It returns
	// the accumulated tick count since the rit armed and whether the rit
	// has completed.
	CalcTickRit(crntTime time.Time) (addupTick int32, ritEnd bool)
	// RealBPM reports the curve's instantaneous tempo.
	RealBPM() int16
}

// TickGen maps wall-clock time to a (measure, tick) cursor under a mutable
// tempo and meter, including the rit curves above. Ported from
// original_source/src/elapse/tickgen.rs; time.Instant becomes time.Time
// throughout.
type TickGen struct {
	bpm           int16
	meter         Meter
	tickForOneMsr int32
	tickForBeat   int32
	bpmStock      int16

	originTime    time.Time
	bpmStartTime  time.Time
	bpmStartTick  int32
	meterStartMsr int32

	crntMsr       int32
	crntTickInMsr int32
	crntTime      time.Time

	ritState     bool
	fermataState bool
	ritgen       RitCurve
}

// NewTickGen constructs a TickGen armed with the given rit curve.
func NewTickGen(rit RitCurve) *TickGen {
	now := time.Now()
	return &TickGen{
		bpm:           lpnlib.DefaultBPM,
		meter:         Meter{4, 4},
		tickForOneMsr: lpnlib.TickForOneMeasure,
		tickForBeat:   lpnlib.TickForOneMeasure / 4,
		bpmStock:      lpnlib.DefaultBPM,
		originTime:    now,
		bpmStartTime:  now,
		crntMsr:       -1,
		crntTime:      now,
		ritgen:        rit,
	}
}

// ChangeBeatEvent applies a meter change at the current measure boundary.
func (t *TickGen) ChangeBeatEvent(tickForOneMsr int32, meter Meter) {
	t.ritState = false
	t.fermataState = false
	t.tickForOneMsr = tickForOneMsr
	t.meter = meter
	t.meterStartMsr = t.crntMsr
	t.bpmStartTime = t.crntTime
	t.bpmStartTick = 0
	t.tickForBeat = lpnlib.TickForOneMeasure / t.meter.Den
}

// ChangeBpm stocks a new tempo, applied at the next measure crossing.
func (t *TickGen) ChangeBpm(bpm int16) {
	t.bpmStock = bpm
}

func (t *TickGen) changeBpmEvent(bpm int16) {
	t.ritState = false
	t.fermataState = false
	t.bpmStartTick = t.calcCrntTick()
	t.bpmStartTime = t.crntTime
	t.bpm = bpm
}

// Start (re)anchors the tick cursor at time at the given tempo. resume=true
// keeps the current measure number (Ctrl Resume); false restarts at measure 0.
func (t *TickGen) Start(at time.Time, bpm int16, resume bool) {
	t.ritState = false
	t.fermataState = false
	t.originTime = at
	t.crntTime = at
	t.bpmStartTick = 0
	t.bpmStartTime = at
	t.bpm = bpm
	t.bpmStock = bpm
	if resume {
		t.meterStartMsr = t.crntMsr
	} else {
		t.meterStartMsr = 0
	}
}

// GenTick advances the cursor to crntTime and reports whether a new measure
// was crossed.
func (t *TickGen) GenTick(crntTime time.Time) bool {
	formerMsr := t.crntMsr
	t.crntTime = crntTime
	if t.ritState {
		t.genRit()
	} else {
		tickFromMeterStarts := t.calcCrntTick()
		t.crntMsr = tickFromMeterStarts/t.tickForOneMsr + t.meterStartMsr
		t.crntTickInMsr = tickFromMeterStarts % t.tickForOneMsr
	}
	newMsr := t.crntMsr != formerMsr
	if newMsr && !t.ritState && t.bpm != t.bpmStock {
		t.changeBpmEvent(t.bpmStock)
		if t.bpm == 0 {
			t.crntTickInMsr = 0
		}
	}
	return newMsr
}

// GetCrntMsrTick reads the current cursor.
func (t *TickGen) GetCrntMsrTick() CrntMsrTick {
	msr := t.crntMsr
	if msr < 0 {
		msr = 0
	}
	return CrntMsrTick{Msr: msr, Tick: t.crntTickInMsr, TickForOneMsr: t.tickForOneMsr}
}

// SetCrntMsr forces the cursor to a given measure (a Set SetCurrentMeasure),
// clearing any in-progress rit/fermata.
func (t *TickGen) SetCrntMsr(msr int32) {
	now := time.Now()
	t.ritState = false
	t.fermataState = false
	t.originTime = now
	t.crntTime = now
	t.bpmStartTime = now
	t.bpmStartTick = 0
	t.crntMsr = msr
	t.meterStartMsr = msr
	t.crntTickInMsr = 0
}

// GetTick returns (measure 1-based, beat 1-based, tick-in-beat, beats-per-measure).
func (t *TickGen) GetTick() (msr, beat, tick, beatsPerMsr int32) {
	msr = t.crntMsr
	if msr < 0 {
		msr = 0
	}
	return msr + 1, (t.crntTickInMsr / t.tickForBeat) + 1, t.crntTickInMsr % t.tickForBeat, t.tickForOneMsr / t.tickForBeat
}

// GetBeatTick returns (tickForOneMsr, tickForBeat).
func (t *TickGen) GetBeatTick() (int32, int32) {
	return t.tickForOneMsr, t.tickForBeat
}

// GetBpm returns the nominal tempo (not the instantaneous rit tempo).
func (t *TickGen) GetBpm() int16 { return t.bpm }

// GetRealBpm returns the instantaneous tempo, following the rit curve while
// a rit is in progress.
func (t *TickGen) GetRealBpm() int16 {
	if t.ritState {
		return t.ritgen.RealBPM()
	}
	return t.bpm
}

// GetMeter returns the active meter.
func (t *TickGen) GetMeter() Meter { return t.meter }

// GetOriginTime returns the time Start was last called with.
func (t *TickGen) GetOriginTime() time.Time { return t.originTime }

// StartRit arms a ritardando/accelerando: ratio below 100 slows, 100 or
// above is a no-op,
// bar is how many barlines it runs across, targetBpm is the tempo to settle
// at (or message.TargetAtempo/TargetFermata, resolved by the caller before
// this is reached: TickGen itself only deals in literal BPM).
func (t *TickGen) StartRit(startTime time.Time, ratio, bar int32, targetBpm int16) {
	if ratio >= 100 {
		return
	}
	if ratio < 100 && !t.ritState && !t.fermataState {
		t.ritgen.SetRit(ratio, bar, float32(t.bpm), startTime, t.crntTickInMsr, t.tickForOneMsr)
	}
	t.ritState = true
	t.meterStartMsr = t.crntMsr
	t.bpmStartTime = startTime
	t.bpmStartTick = t.crntTickInMsr
	t.bpmStock = targetBpm
}

func (t *TickGen) calcCrntTick() int32 {
	diff := t.crntTime.Sub(t.bpmStartTime).Seconds()
	elapsedTick := (float64(t.tickForBeat) * float64(t.bpm) * diff) / 60.0
	return int32(elapsedTick) + t.bpmStartTick
}

func (t *TickGen) genRit() {
	addupTick, ritEnd := t.ritgen.CalcTickRit(t.crntTime)
	if ritEnd {
		addupMsr := addupTick / t.tickForOneMsr
		realTick := addupTick % t.tickForOneMsr
		t.ritState = false
		t.crntMsr = t.meterStartMsr + addupMsr
		t.crntTickInMsr = realTick
		t.meterStartMsr = t.crntMsr
		t.bpmStartTime = t.crntTime
		t.bpmStartTick = realTick
		t.bpm = t.bpmStock
	} else {
		t.crntMsr += addupTick / t.tickForOneMsr
		t.crntTickInMsr = addupTick % t.tickForOneMsr
	}
}
