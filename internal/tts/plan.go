package tts

// Output formats understood by the synthesis service.
const (
	FormatPCM = "pcm"
	FormatMP3 = "mp3"
)

// Plan decides, per response, which format to request and where the audio
// goes. There is exactly one synthesis call regardless of how many sinks are
// active: when both speakers and file are wanted, the PCM stream is shared.
type Plan struct {
	Format     string
	ToSpeakers bool
	ToFile     bool
}

// NewPlan maps the session flags onto a synthesis plan. Streaming forces PCM
// since the speaker sink plays raw samples; a file-only plan requests MP3 and
// writes it untouched.
func NewPlan(stream, save bool) Plan {
	switch {
	case stream:
		return Plan{Format: FormatPCM, ToSpeakers: true, ToFile: save}
	case save:
		return Plan{Format: FormatMP3, ToFile: true}
	default:
		return Plan{}
	}
}

// Silent reports whether the plan produces no audio at all.
func (p Plan) Silent() bool {
	return !p.ToSpeakers && !p.ToFile
}
