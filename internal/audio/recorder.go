package audio

import (
	"context"
	"errors"
	"math"

	"github.com/looplab/fsm"

	"github.com/voxd/voxd/internal/config"
	"github.com/voxd/voxd/internal/session"
	"github.com/voxd/voxd/pkg/logger"
)

// Recorder states.
const (
	stateStarting   = "starting"
	stateListening  = "listening"
	stateSilenceRun = "silence_run"
	stateStopped    = "stopped"
)

// Recorder events.
const (
	evBegin   = "begin"
	evSpeech  = "speech"
	evQuiet   = "quiet"
	evTimeout = "timeout"
	evFail    = "fail"
)

// Recorder captures one utterance from the input stream, ending it after a
// run of consecutive frames below the silence threshold.
type Recorder struct {
	stream    InputStream
	cfg       config.AudioConfig
	notify    session.Notifier
	logger    *logger.Logger
	threshold float64
}

func NewRecorder(stream InputStream, cfg config.AudioConfig, notify session.Notifier, log *logger.Logger) *Recorder {
	return &Recorder{
		stream:    stream,
		cfg:       cfg,
		notify:    notify,
		logger:    log.Named("recorder"),
		threshold: cfg.DefaultSilenceThreshold,
	}
}

// Threshold returns the silence threshold currently in effect.
func (r *Recorder) Threshold() float64 {
	return r.threshold
}

// Calibrate samples ambient noise and sets the silence threshold to the mean
// peak amplitude plus the configured buffer. When no frame can be read it
// falls back to the default threshold and reports a single error status; the
// session is expected to proceed regardless.
func (r *Recorder) Calibrate(ctx context.Context) float64 {
	r.notify(session.StatusCalibrating, "Calibrating microphone...", nil)

	if err := r.stream.Start(); err != nil {
		r.logger.Warnf("calibration could not open stream: %v", err)
		r.threshold = r.cfg.DefaultSilenceThreshold
		r.notify(session.StatusError, "Calibration failed, using default threshold", nil)
		return r.threshold
	}

	var sum float64
	valid := 0
	for i := 0; i < r.cfg.CalibrationFrames; i++ {
		if ctx.Err() != nil {
			break
		}
		frame, err := r.stream.Read()
		if err != nil {
			r.logger.Debugf("calibration read %d failed: %v", i, err)
			break
		}
		sum += frame.Peak()
		valid++
	}

	if valid == 0 {
		r.threshold = r.cfg.DefaultSilenceThreshold
		r.notify(session.StatusError, "Calibration failed, using default threshold", nil)
		r.logger.Warnf("calibration read no frames, threshold defaulted to %.0f", r.threshold)
		return r.threshold
	}

	r.threshold = sum/float64(valid) + r.cfg.CalibrationBuffer
	r.logger.Infof("calibrated silence threshold to %.1f over %d frames", r.threshold, valid)
	return r.threshold
}

// Record captures frames until the silence run exceeds the configured chunk
// count. Every read frame is part of the utterance, including the trailing
// silence. The boolean reports whether the utterance ended on silence rather
// than a stream failure or cancellation.
func (r *Recorder) Record(ctx context.Context) (Utterance, bool) {
	utt := Utterance{SampleRate: r.cfg.SampleRate}

	machine := fsm.NewFSM(
		stateStarting,
		fsm.Events{
			{Name: evBegin, Src: []string{stateStarting}, Dst: stateListening},
			{Name: evSpeech, Src: []string{stateListening, stateSilenceRun}, Dst: stateListening},
			{Name: evQuiet, Src: []string{stateListening, stateSilenceRun}, Dst: stateSilenceRun},
			{Name: evTimeout, Src: []string{stateSilenceRun}, Dst: stateStopped},
			{Name: evFail, Src: []string{stateStarting, stateListening, stateSilenceRun}, Dst: stateStopped},
		},
		fsm.Callbacks{
			"after_" + evBegin: func(_ context.Context, _ *fsm.Event) {
				r.notify(session.StatusRecording, "Recording... Speak now", nil)
			},
		},
	)

	if err := r.stream.Start(); err != nil {
		r.logger.Warnf("recording could not open stream: %v", err)
		r.fire(ctx, machine, evFail)
		return utt, false
	}
	r.fire(ctx, machine, evBegin)

	silent := 0
	for {
		if ctx.Err() != nil {
			r.fire(ctx, machine, evFail)
			return utt, false
		}

		frame, err := r.stream.Read()
		if err != nil {
			r.logger.Warnf("stream read failed after %d frames: %v", len(utt.Frames), err)
			r.fire(ctx, machine, evFail)
			return utt, false
		}

		if frame.Peak() < r.threshold {
			pct := int(math.Round(100 * float64(silent) / float64(r.cfg.SilenceChunks)))
			if pct > 100 {
				pct = 100
			}
			r.notify(session.StatusSilence, "Detecting silence...", session.Progress(pct))
			silent++
			r.fire(ctx, machine, evQuiet)
		} else {
			silent = 0
			r.fire(ctx, machine, evSpeech)
		}

		utt.Frames = append(utt.Frames, frame)

		if silent > r.cfg.SilenceChunks {
			r.fire(ctx, machine, evTimeout)
			r.logger.Infof("recording stopped after %d frames (%s)", len(utt.Frames), utt.Duration())
			if r.cfg.SaveFile != "" {
				if err := utt.Save(r.cfg.SaveFile); err != nil {
					r.logger.Errorf("saving recording to %s: %v", r.cfg.SaveFile, err)
				}
			}
			return utt, true
		}
	}
}

func (r *Recorder) fire(ctx context.Context, machine *fsm.FSM, event string) {
	err := machine.Event(ctx, event)
	if err == nil {
		return
	}
	var noop fsm.NoTransitionError
	if errors.As(err, &noop) {
		return
	}
	r.logger.Debugf("state machine rejected %s in %s: %v", event, machine.Current(), err)
}
