package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// ErrUnsupportedFormat is returned for files no decoder handles.
var ErrUnsupportedFormat = errors.New("audio: unsupported file format")

// bytesPerFrame is the size of one 16-bit stereo frame as produced by the
// ebiten decoders.
const bytesPerFrame = 4

// DecodedStream is 16-bit stereo PCM at the requested sample rate.
type DecodedStream interface {
	io.ReadSeeker
	Length() int64
}

// Decode picks a decoder by file extension.
func Decode(sampleRate int, path string, src io.Reader) (DecodedStream, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return mp3.DecodeWithSampleRate(sampleRate, src)
	case ".wav", ".wave":
		return wav.DecodeWithSampleRate(sampleRate, src)
	case ".ogg", ".oga":
		return vorbis.DecodeWithSampleRate(sampleRate, src)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Duration reports how long a decoded stream plays.
func Duration(sampleRate int, length int64) time.Duration {
	if sampleRate <= 0 || length <= 0 {
		return 0
	}
	frames := length / bytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// drainReader notes when the decoder has handed out its last byte.
type drainReader struct {
	src DecodedStream
	eof atomic.Bool
}

func (r *drainReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if errors.Is(err, io.EOF) {
		r.eof.Store(true)
	}
	return n, err
}

func (r *drainReader) Seek(offset int64, whence int) (int64, error) {
	r.eof.Store(false)
	return r.src.Seek(offset, whence)
}

// Sink streams one decoded media file. Paused sinks keep their position;
// a sink that played to the end is drained and must be reopened.
type Sink struct {
	file     *os.File
	reader   *drainReader
	player   *ebitaudio.Player
	duration time.Duration
}

// OpenSink opens and decodes path for playback on the shared context.
func OpenSink(sampleRate int, path string) (*Sink, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stream, err := Decode(sampleRate, path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		f.Close()
		return nil, err
	}
	reader := &drainReader{src: stream}
	pl, err := ctx.NewPlayer(reader)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("audio: new player: %w", err)
	}
	return &Sink{
		file:     f,
		reader:   reader,
		player:   pl,
		duration: Duration(sampleRate, stream.Length()),
	}, nil
}

func (s *Sink) Play()  { s.player.Play() }
func (s *Sink) Pause() { s.player.Pause() }

func (s *Sink) Duration() time.Duration { return s.duration }

// Seek moves to pos, a fraction of the file's duration.
func (s *Sink) Seek(pos float64) error {
	pos = min(max(pos, 0), 1)
	return s.player.SetPosition(time.Duration(pos * float64(s.duration)))
}

func (s *Sink) Position() float64 {
	if s.Drained() {
		return 1
	}
	if s.duration <= 0 {
		return 0
	}
	return min(float64(s.player.Position())/float64(s.duration), 1)
}

// Drained reports whether the whole file has been played out.
func (s *Sink) Drained() bool {
	return s.reader.eof.Load() && !s.player.IsPlaying()
}

func (s *Sink) Close() error {
	s.player.Pause()
	err := s.player.Close()
	if ferr := s.file.Close(); err == nil {
		err = ferr
	}
	return err
}
