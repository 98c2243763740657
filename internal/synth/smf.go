// Package synth reads Standard MIDI Files and renders them with a small
// polyphonic chip-style voice engine.
package synth

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

var (
	ErrNotSMF            = errors.New("synth: not a standard MIDI file")
	ErrUnsupportedFormat = errors.New("synth: unsupported MIDI file")
)

// DefaultMicrosPerQuarter is the MIDI default tempo, 120 bpm.
const DefaultMicrosPerQuarter = 500000

type EventKind int

const (
	EventNoteOff EventKind = iota
	EventNoteOn
	EventControl
	EventProgram
	EventPitchBend
	EventTempo
)

// Event is one channel or tempo event at an absolute tick.
type Event struct {
	Tick    int
	Kind    EventKind
	Channel int
	Data1   int
	Data2   int
	// MicrosPerQuarter is set for EventTempo.
	MicrosPerQuarter int
}

// Song is a MIDI file flattened into one tick-ordered event list.
type Song struct {
	Format   int
	Division int
	Events   []Event
	EndTick  int
}

// ReadSMFFile parses the MIDI file at path.
func ReadSMFFile(path string) (*Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	song, err := ReadSMF(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return song, nil
}

// ReadSMF parses a format 0 or 1 file with metrical (ticks per quarter)
// timing. Tracks are merged; ties keep file order.
func ReadSMF(r io.Reader) (*Song, error) {
	id, body, err := readChunk(r)
	if err != nil {
		return nil, ErrNotSMF
	}
	if id != "MThd" || len(body) < 6 {
		return nil, ErrNotSMF
	}
	format := int(binary.BigEndian.Uint16(body[0:]))
	ntracks := int(binary.BigEndian.Uint16(body[2:]))
	division := int(binary.BigEndian.Uint16(body[4:]))
	if format > 1 {
		return nil, fmt.Errorf("%w: format %d", ErrUnsupportedFormat, format)
	}
	if division&0x8000 != 0 || division == 0 {
		return nil, fmt.Errorf("%w: SMPTE timing", ErrUnsupportedFormat)
	}

	song := &Song{Format: format, Division: division}
	for read := 0; read < ntracks; {
		id, body, err := readChunk(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("synth: track %d: %w", read, err)
		}
		if id != "MTrk" {
			continue
		}
		end, err := parseTrack(body, &song.Events)
		if err != nil {
			return nil, fmt.Errorf("synth: track %d: %w", read, err)
		}
		song.EndTick = max(song.EndTick, end)
		read++
	}
	sort.SliceStable(song.Events, func(i, j int) bool {
		return song.Events[i].Tick < song.Events[j].Tick
	})
	return song, nil
}

func readChunk(r io.Reader) (string, []byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", nil, err
	}
	size := binary.BigEndian.Uint32(hdr[4:])
	if size > 1<<28 {
		return "", nil, fmt.Errorf("chunk too large: %d bytes", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", nil, fmt.Errorf("truncated %q chunk: %w", hdr[:4], err)
	}
	return string(hdr[:4]), body, nil
}

type trackReader struct {
	b   []byte
	pos int
}

var errTruncated = errors.New("truncated event")

func (t *trackReader) byte() (byte, error) {
	if t.pos >= len(t.b) {
		return 0, errTruncated
	}
	c := t.b[t.pos]
	t.pos++
	return c, nil
}

func (t *trackReader) varint() (int, error) {
	v := 0
	for i := 0; i < 4; i++ {
		c, err := t.byte()
		if err != nil {
			return 0, err
		}
		v = v<<7 | int(c&0x7f)
		if c&0x80 == 0 {
			return v, nil
		}
	}
	return 0, errors.New("variable-length quantity too long")
}

func (t *trackReader) skip(n int) error {
	if n < 0 || t.pos+n > len(t.b) {
		return errTruncated
	}
	t.pos += n
	return nil
}

// parseTrack appends the track's events to dst and returns its end tick.
func parseTrack(b []byte, dst *[]Event) (int, error) {
	t := &trackReader{b: b}
	tick := 0
	var status byte
	for t.pos < len(t.b) {
		delta, err := t.varint()
		if err != nil {
			return 0, err
		}
		tick += delta
		c, err := t.byte()
		if err != nil {
			return 0, err
		}
		if c < 0x80 {
			if status == 0 {
				return 0, errors.New("running status without a previous status byte")
			}
			t.pos--
			c = status
		}
		switch {
		case c == 0xff:
			kind, err := t.byte()
			if err != nil {
				return 0, err
			}
			n, err := t.varint()
			if err != nil {
				return 0, err
			}
			start := t.pos
			if err := t.skip(n); err != nil {
				return 0, err
			}
			switch kind {
			case 0x51:
				if n == 3 {
					d := t.b[start : start+3]
					us := int(d[0])<<16 | int(d[1])<<8 | int(d[2])
					if us > 0 {
						*dst = append(*dst, Event{Tick: tick, Kind: EventTempo, MicrosPerQuarter: us})
					}
				}
			case 0x2f:
				return tick, nil
			}
		case c == 0xf0 || c == 0xf7:
			n, err := t.varint()
			if err != nil {
				return 0, err
			}
			if err := t.skip(n); err != nil {
				return 0, err
			}
		case c >= 0xf0:
			// Other system messages carry no payload in files.
		default:
			status = c
			ev, keep, err := channelEvent(t, c, tick)
			if err != nil {
				return 0, err
			}
			if keep {
				*dst = append(*dst, ev)
			}
		}
	}
	return tick, nil
}

// channelEvent decodes a channel message. Aftertouch is consumed and
// reported as not kept.
func channelEvent(t *trackReader, status byte, tick int) (Event, bool, error) {
	ev := Event{Tick: tick, Channel: int(status & 0x0f)}
	d1, err := t.byte()
	if err != nil {
		return ev, false, err
	}
	ev.Data1 = int(d1 & 0x7f)
	switch status & 0xf0 {
	case 0xc0:
		ev.Kind = EventProgram
		return ev, true, nil
	case 0xd0:
		return ev, false, nil
	}
	d2, err := t.byte()
	if err != nil {
		return ev, false, err
	}
	ev.Data2 = int(d2 & 0x7f)
	switch status & 0xf0 {
	case 0x80:
		ev.Kind = EventNoteOff
	case 0x90:
		ev.Kind = EventNoteOn
		if ev.Data2 == 0 {
			ev.Kind = EventNoteOff
		}
	case 0xa0:
		return ev, false, nil
	case 0xb0:
		ev.Kind = EventControl
	case 0xe0:
		ev.Kind = EventPitchBend
		ev.Data1 |= ev.Data2 << 7
		ev.Data2 = 0
	}
	return ev, true, nil
}
