package synth

import (
	"math"
)

const twoPi = math.Pi * 2

const drumChannel = 9

// Params shapes the voice engine.
type Params struct {
	Voices      int
	MasterGain  float64
	AttackSec   float64
	DecaySec    float64
	SustainLvl  float64
	ReleaseSec  float64
	PulseDutyA  float64
	PulseDutyB  float64
	VelocityAmp float64
	LPFCutoff   float64 // Hz; 0 disables the output lowpass
	// VibratoHz is the mod-wheel vibrato rate; full wheel is VibratoDepth
	// semitones.
	VibratoHz    float64
	VibratoDepth float64
}

func DefaultParams() Params {
	return Params{
		Voices:       24,
		MasterGain:   0.22,
		AttackSec:    0.005,
		DecaySec:     0.15,
		SustainLvl:   0.65,
		ReleaseSec:   0.20,
		PulseDutyA:   0.125,
		PulseDutyB:   0.25,
		VelocityAmp:  0.85,
		LPFCutoff:    12000,
		VibratoHz:    5.5,
		VibratoDepth: 0.5,
	}
}

type waveType int

const (
	wavePulseA waveType = iota
	wavePulseB
	waveTriangle
	waveNoise
)

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	active   bool
	channel  int
	note     int
	age      int
	wave     waveType
	freq     float64
	phase    float64
	velocity float64
	env      float64
	envState envState
	lfsr     uint16
	// drum voices release on their own after this many frames.
	holdFrames int
}

type channelState struct {
	program int
	volume  float64 // CC7
	pan     float64 // CC10, -1..1
	bend    float64 // semitones
	vib     vibrato
}

func (c *channelState) reset(p Params) {
	*c = channelState{volume: 100.0 / 127.0}
	c.vib.rateHz = p.VibratoHz
}

// voices is a fixed pool of oscillators driven by MIDI channel messages.
type voices struct {
	sampleRate float64
	params     Params
	pool       []voice
	channels   [16]channelState
	lpfAlpha   float64
	lpfL, lpfR float64
	dcInL      float64
	dcOutL     float64
	dcInR      float64
	dcOutR     float64
}

func newVoices(sampleRate int, p Params) *voices {
	if p.Voices <= 0 {
		p.Voices = DefaultParams().Voices
	}
	v := &voices{
		sampleRate: float64(sampleRate),
		params:     p,
		pool:       make([]voice, p.Voices),
	}
	for i := range v.pool {
		v.pool[i].lfsr = uint16(0xACE1 + i*97)
	}
	if p.LPFCutoff > 0 && p.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * p.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		v.lpfAlpha = dt / (rc + dt)
	}
	v.resetChannels()
	return v
}

func (v *voices) resetChannels() {
	for i := range v.channels {
		v.channels[i].reset(v.params)
	}
}

func (v *voices) noteOn(ch, note, velocity int) {
	slot := v.steal()
	vc := &v.pool[slot]
	*vc = voice{
		active:   true,
		channel:  ch,
		note:     note,
		wave:     waveFor(ch, v.channels[ch].program, note),
		freq:     midiToFreq(note),
		velocity: clamp(float64(velocity)/127.0, 0, 1),
		envState: envAttack,
		lfsr:     vc.lfsr,
	}
	if vc.lfsr == 0 {
		vc.lfsr = 0xACE1
	}
	if ch == drumChannel {
		vc.holdFrames = int(0.06 * v.sampleRate)
		// Pitch the noise clock from the drum key so kits are distinguishable.
		vc.freq = midiToFreq(note + 36)
	}
}

func (v *voices) noteOff(ch, note int) {
	for i := range v.pool {
		vc := &v.pool[i]
		if vc.active && vc.channel == ch && vc.note == note && vc.envState != envRelease && ch != drumChannel {
			vc.envState = envRelease
		}
	}
}

// releaseChannel moves every voice on ch into release.
func (v *voices) releaseChannel(ch int) {
	for i := range v.pool {
		if vc := &v.pool[i]; vc.active && vc.channel == ch {
			vc.envState = envRelease
		}
	}
}

// silence stops every voice immediately.
func (v *voices) silence() {
	for i := range v.pool {
		v.pool[i].active = false
		v.pool[i].env = 0
		v.pool[i].envState = envOff
	}
	v.lpfL, v.lpfR = 0, 0
	v.dcInL, v.dcOutL, v.dcInR, v.dcOutR = 0, 0, 0, 0
}

func (v *voices) control(ch, num, val int) {
	c := &v.channels[ch]
	switch num {
	case 1:
		c.vib.depth = float64(val) / 127.0 * v.params.VibratoDepth
		if c.vib.depth == 0 {
			c.vib.reset()
		}
	case 7:
		c.volume = float64(val) / 127.0
	case 10:
		c.pan = (float64(val) - 64) / 64
	case 120:
		for i := range v.pool {
			if vc := &v.pool[i]; vc.active && vc.channel == ch {
				vc.active = false
			}
		}
	case 121:
		program := c.program
		c.reset(v.params)
		c.program = program
	case 123:
		v.releaseChannel(ch)
	}
}

func (v *voices) program(ch, program int) { v.channels[ch].program = program }

// pitchBend takes the 14-bit bend value; the range is two semitones.
func (v *voices) pitchBend(ch, value int) {
	v.channels[ch].bend = float64(value-8192) / 8192 * 2
}

func (v *voices) activeCount() int {
	n := 0
	for i := range v.pool {
		if v.pool[i].active {
			n++
		}
	}
	return n
}

func (v *voices) renderFrame() (float32, float32) {
	var mod [16]float64
	for ch := range v.channels {
		c := &v.channels[ch]
		mod[ch] = c.bend + c.vib.sample(v.sampleRate)
	}

	var l, r float64
	for i := range v.pool {
		vc := &v.pool[i]
		if !vc.active {
			continue
		}
		vc.age++
		if vc.holdFrames > 0 {
			vc.holdFrames--
			if vc.holdFrames == 0 {
				vc.envState = envRelease
			}
		}
		env := v.advanceEnv(vc)
		if !vc.active {
			continue
		}
		c := &v.channels[vc.channel]
		freq := vc.freq
		if m := mod[vc.channel]; m != 0 {
			freq *= math.Pow(2, m/12)
		}
		sample := v.wave(vc, freq)
		level := env * (0.15 + vc.velocity*v.params.VelocityAmp) * c.volume
		angle := (c.pan + 1) / 2 * (math.Pi / 2)
		l += sample * level * math.Cos(angle) * v.params.MasterGain
		r += sample * level * math.Sin(angle) * v.params.MasterGain
	}
	l = dcBlock(l, &v.dcInL, &v.dcOutL)
	r = dcBlock(r, &v.dcInR, &v.dcOutR)
	if v.lpfAlpha > 0 {
		v.lpfL += v.lpfAlpha * (l - v.lpfL)
		v.lpfR += v.lpfAlpha * (r - v.lpfR)
		l, r = v.lpfL, v.lpfR
	}
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

func dcBlock(x float64, in, out *float64) float64 {
	const pole = 0.995
	y := x - *in + pole**out
	*in = x
	*out = y
	return y
}

// polyBLEP smooths the step at a pulse edge; t is the phase, dt the
// per-sample increment.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func (v *voices) wave(vc *voice, freq float64) float64 {
	dt := freq / v.sampleRate
	vc.phase += dt
	if vc.phase >= 1 {
		vc.phase -= math.Floor(vc.phase)
	}
	switch vc.wave {
	case wavePulseA, wavePulseB:
		duty := v.params.PulseDutyA
		if vc.wave == wavePulseB {
			duty = v.params.PulseDutyB
		}
		out := -1.0
		if vc.phase < duty {
			out = 1
		}
		out += polyBLEP(vc.phase, dt)
		out -= polyBLEP(math.Mod(vc.phase-duty+1, 1), dt)
		return out
	case waveTriangle:
		return 2*math.Abs(2*vc.phase-1) - 1
	case waveNoise:
		if vc.phase < dt {
			bit := (vc.lfsr ^ (vc.lfsr >> 1)) & 1
			vc.lfsr = (vc.lfsr >> 1) | (bit << 15)
		}
		if vc.lfsr&1 == 1 {
			return 1
		}
		return -1
	}
	return 0
}

// waveFor picks an oscillator from the General MIDI program family:
// basses and pads get the triangle, brass and leads the narrow pulse,
// everything else the wider pulse. Channel 10 is always noise.
func waveFor(ch, program, note int) waveType {
	if ch == drumChannel {
		return waveNoise
	}
	switch family := program / 8; {
	case family == 4, family == 11, family == 12:
		return waveTriangle
	case family == 7, family == 9, family == 10:
		return wavePulseA
	case program >= 120:
		return waveNoise
	default:
		if note < 48 {
			return waveTriangle
		}
		return wavePulseB
	}
}

// steal returns a free slot, else the oldest releasing voice, else the
// oldest voice.
func (v *voices) steal() int {
	for i := range v.pool {
		if !v.pool[i].active {
			return i
		}
	}
	oldestRelease, releaseAge := -1, -1
	oldest, oldestAge := 0, -1
	for i := range v.pool {
		vc := &v.pool[i]
		if vc.envState == envRelease && vc.age > releaseAge {
			oldestRelease, releaseAge = i, vc.age
		}
		if vc.age > oldestAge {
			oldest, oldestAge = i, vc.age
		}
	}
	if oldestRelease >= 0 {
		return oldestRelease
	}
	return oldest
}

func (v *voices) advanceEnv(vc *voice) float64 {
	p := v.params
	switch vc.envState {
	case envAttack:
		vc.env += envStep(1, p.AttackSec, v.sampleRate)
		if vc.env >= 1 {
			vc.env = 1
			vc.envState = envDecay
		}
	case envDecay:
		vc.env -= envStep(1-p.SustainLvl, p.DecaySec, v.sampleRate)
		if vc.env <= p.SustainLvl {
			vc.env = p.SustainLvl
			vc.envState = envSustain
		}
	case envRelease:
		vc.env -= envStep(max(p.SustainLvl, 0.1), p.ReleaseSec, v.sampleRate)
		if vc.env <= 0.0001 {
			vc.env = 0
			vc.envState = envOff
			vc.active = false
		}
	case envOff:
		vc.active = false
		vc.env = 0
	}
	return vc.env
}

func envStep(span, seconds, sampleRate float64) float64 {
	if seconds <= 0 || sampleRate <= 0 {
		return 1
	}
	return span / (seconds * sampleRate)
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
