// Package beep plays tracks on the local audio device through gopxl/beep.
package beep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/backends"
	"github.com/famish99/musicradio/internal/decoder"
)

const (
	SpeakerBufferSize = 250 * time.Millisecond
	ResampleQuality   = 4
	eventQueueSize    = 8
)

// The speaker is process-wide; it is initialised by the first track and
// later tracks are resampled to its rate.
var (
	speakerMu    sync.Mutex
	speakerReady bool
	speakerRate  beep.SampleRate

	// speakerInit opens the audio device; replaced in tests
	speakerInit = speaker.Init
)

func initSpeaker(rate beep.SampleRate) (beep.SampleRate, error) {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if speakerReady {
		return speakerRate, nil
	}
	if err := speakerInit(rate, rate.N(SpeakerBufferSize)); err != nil {
		return 0, fmt.Errorf("%w: failed to initialize speaker: %v", backends.ErrPlaybackBlocked, err)
	}
	speakerReady = true
	speakerRate = rate
	log.Debug().Msgf("Speaker initialized with sample rate: %d Hz, buffer: %v", rate, SpeakerBufferSize)
	return rate, nil
}

// CloseSpeaker releases the audio device; the next Play initialises it again
func CloseSpeaker() {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if !speakerReady {
		return
	}
	speaker.Close()
	speakerReady = false
	log.Debug().Msg("Speaker closed")
}

// Options configures elements created by NewFactory
type Options struct {
	HTTPClient *http.Client
	// TempDir holds transcoded files; defaults to os.TempDir()
	TempDir string
}

// NewFactory returns a factory of speaker-backed elements
func NewFactory(opts Options) backends.Factory {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return func() backends.MediaElement {
		return &Element{opts: opts}
	}
}

// Element is a backends.MediaElement playing through the speaker
type Element struct {
	opts Options

	mu       sync.Mutex
	handler  backends.Handler
	events   chan backends.Event
	quit     chan struct{}
	cancel   context.CancelFunc
	loaded   bool
	ready    bool
	wantPlay bool
	released bool

	format   beep.Format
	source   beep.Streamer
	position interface{ Position() int }
	total    time.Duration
	closers  []io.Closer
	ctrl     *beep.Ctrl
	tempFile string
}

func (e *Element) Load(src backends.Source, preload backends.Preload, h backends.Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return errors.New("element released")
	}
	if e.loaded {
		return errors.New("element already loaded")
	}
	if src.Location() == "" {
		return errors.New("empty source")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.handler = h
	e.events = make(chan backends.Event, eventQueueSize)
	e.quit = make(chan struct{})
	e.loaded = true

	go e.dispatch(h)
	e.emit(backends.Event{Type: backends.EventLoadStart})
	go e.load(ctx, src, preload)
	return nil
}

// dispatch delivers queued events until the element is released
func (e *Element) dispatch(h backends.Handler) {
	for {
		select {
		case <-e.quit:
			return
		case ev := <-e.events:
			if e.isReleased() {
				return
			}
			h(ev)
		}
	}
}

func (e *Element) emit(ev backends.Event) {
	select {
	case e.events <- ev:
	case <-e.quit:
	}
}

func (e *Element) isReleased() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

func (e *Element) load(ctx context.Context, src backends.Source, preload backends.Preload) {
	streamer, format, closers, err := e.open(ctx, src)
	if err != nil {
		e.fail(ctx, err)
		return
	}

	var (
		playable beep.Streamer
		position interface{ Position() int }
		total    time.Duration
	)

	if preload == backends.PreloadAuto {
		buffer := beep.NewBuffer(format)
		buffer.Append(&contextStreamer{ctx: ctx, s: streamer})
		decodeErr := streamer.Err()
		streamer.Close()
		closeAll(closers)
		if ctx.Err() != nil {
			return
		}
		if decodeErr != nil {
			e.fail(ctx, fmt.Errorf("failed to decode %s: %w", src.Location(), decodeErr))
			return
		}
		seeker := buffer.Streamer(0, buffer.Len())
		playable, position = seeker, seeker
		total = format.SampleRate.D(buffer.Len())
		closers = nil
	} else {
		playable, position = streamer, streamer
		if n := streamer.Len(); n > 0 {
			total = format.SampleRate.D(n)
		}
		closers = append([]io.Closer{streamer}, closers...)
	}

	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		closeAll(closers)
		return
	}
	e.format = format
	e.source = playable
	e.position = position
	e.total = total
	e.closers = closers
	e.ready = true
	e.mu.Unlock()

	log.Debug().Msgf("Loaded %s (%d Hz, %v)", src.Location(), format.SampleRate, total)
	e.emit(backends.Event{Type: backends.EventCanPlay})
	e.startDeferred()
}

// startDeferred honours a Play that arrived while the track was loading.
// The outcome is reported as EventPlaying or EventError.
func (e *Element) startDeferred() {
	e.mu.Lock()
	if !e.wantPlay || e.released {
		e.mu.Unlock()
		return
	}
	e.wantPlay = false
	err := e.start()
	e.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Msg("Deferred start failed")
		e.emit(backends.Event{Type: backends.EventError, Err: err})
		return
	}
	e.emit(backends.Event{Type: backends.EventPlaying})
}

func (e *Element) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	log.Warn().Err(err).Msg("Media load failed")
	e.emit(backends.Event{Type: backends.EventError, Err: err})
}

// open returns a decoded stream for src plus any extra resources to close
func (e *Element) open(ctx context.Context, src backends.Source) (beep.StreamSeekCloser, beep.Format, []io.Closer, error) {
	location := src.Location()

	if decoder.NeedsTranscode(location) {
		tmp, err := os.CreateTemp(e.opts.TempDir, "musicradio-*.wav")
		if err != nil {
			return nil, beep.Format{}, nil, fmt.Errorf("failed to create temp file: %w", err)
		}
		tmp.Close()
		if err := decoder.TranscodeToWAV(ctx, location, tmp.Name()); err != nil {
			os.Remove(tmp.Name())
			return nil, beep.Format{}, nil, err
		}
		e.mu.Lock()
		e.tempFile = tmp.Name()
		e.mu.Unlock()
		location = tmp.Name()
	}

	rc, err := e.fetch(ctx, location)
	if err != nil {
		return nil, beep.Format{}, nil, err
	}

	streamer, format, err := decode(decoder.Ext(location), rc)
	if err != nil {
		rc.Close()
		return nil, beep.Format{}, nil, fmt.Errorf("failed to decode %s: %w", location, err)
	}
	return streamer, format, []io.Closer{rc}, nil
}

func (e *Element) fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", location, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", location, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: %s", location, resp.Status)
	}
	return resp.Body, nil
}

func decode(ext string, rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	switch ext {
	case ".mp3":
		return mp3.Decode(rc)
	case ".wav":
		return wav.Decode(rc)
	case ".flac":
		return flac.Decode(rc)
	case ".ogg", ".oga":
		return vorbis.Decode(rc)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported format %q", ext)
	}
}

// Play starts playback. Before the track is ready it records the intent;
// once loading completes the element starts and delivers EventPlaying, or
// EventError if the speaker refuses.
func (e *Element) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return errors.New("element released")
	}
	if !e.ready {
		e.wantPlay = true
		return nil
	}
	return e.start()
}

// start plays the loaded source; caller holds e.mu
func (e *Element) start() error {
	if e.ctrl != nil {
		speaker.Lock()
		e.ctrl.Paused = false
		speaker.Unlock()
		return nil
	}

	rate, err := initSpeaker(e.format.SampleRate)
	if err != nil {
		return err
	}

	var s beep.Streamer = e.source
	if e.format.SampleRate != rate {
		s = beep.Resample(ResampleQuality, e.format.SampleRate, rate, s)
	}

	source := e.source
	e.ctrl = &beep.Ctrl{
		Streamer: beep.Seq(s, beep.Callback(func() { e.finished(source) })),
	}
	speaker.Play(e.ctrl)
	return nil
}

// finished runs on the speaker goroutine with the speaker locked
func (e *Element) finished(source beep.Streamer) {
	if err := source.Err(); err != nil {
		go e.emit(backends.Event{Type: backends.EventError, Err: err})
		return
	}
	go e.emit(backends.Event{Type: backends.EventEnded})
}

func (e *Element) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.wantPlay = false
	if e.ctrl != nil {
		speaker.Lock()
		e.ctrl.Paused = true
		speaker.Unlock()
	}
	return nil
}

func (e *Element) Release() error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return nil
	}
	e.released = true
	if e.cancel != nil {
		e.cancel()
	}
	if e.quit != nil {
		close(e.quit)
	}
	if e.ctrl != nil {
		speaker.Lock()
		e.ctrl.Streamer = nil
		e.ctrl.Paused = true
		speaker.Unlock()
	}
	closers := e.closers
	e.closers = nil
	tempFile := e.tempFile
	e.mu.Unlock()

	closeAll(closers)
	if tempFile != "" {
		os.Remove(tempFile)
	}
	return nil
}

func (e *Element) Timing() (time.Duration, time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.position == nil {
		return 0, e.total
	}
	var pos int
	if e.ctrl != nil {
		speaker.Lock()
		pos = e.position.Position()
		speaker.Unlock()
	} else {
		pos = e.position.Position()
	}
	return e.format.SampleRate.D(pos), e.total
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

// contextStreamer stops a stream once ctx is cancelled
type contextStreamer struct {
	ctx context.Context
	s   beep.Streamer
}

func (c *contextStreamer) Stream(samples [][2]float64) (int, bool) {
	if c.ctx.Err() != nil {
		return 0, false
	}
	return c.s.Stream(samples)
}

func (c *contextStreamer) Err() error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	return c.s.Err()
}

var _ backends.MediaElement = (*Element)(nil)
