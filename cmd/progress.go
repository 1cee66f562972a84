package cmd

import (
	"io"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/nijaru/mediatext/pipeline"
)

var stageIndex = map[pipeline.State]int64{
	pipeline.StateCreated:      0,
	pipeline.StateResolving:    1,
	pipeline.StateDownloading:  2,
	pipeline.StateConverting:   2,
	pipeline.StateTranscribing: 3,
	pipeline.StateWriting:      4,
	pipeline.StateDone:         5,
}

// stageProgress renders one job as a bar that advances per stage.
type stageProgress struct {
	container *mpb.Progress
	bar       *mpb.Bar

	mu     sync.Mutex
	status string
	ended  bool
}

func newStageProgress(w io.Writer, name string) *stageProgress {
	sp := &stageProgress{status: pipeline.StateCreated.StatusText()}

	sp.container = mpb.New(
		mpb.WithOutput(w),
		mpb.WithRefreshRate(120*time.Millisecond),
		mpb.WithWidth(40),
	)
	sp.bar = sp.container.AddBar(stageIndex[pipeline.StateDone],
		mpb.PrependDecorators(
			decor.Name(name+" ", decor.WC{C: decor.DindentRight}),
			decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				sp.mu.Lock()
				defer sp.mu.Unlock()
				return sp.status
			}, decor.WCSyncSpace),
		),
	)
	return sp
}

// Observe is a pipeline.Observer.
func (sp *stageProgress) Observe(ev pipeline.Event) {
	sp.mu.Lock()
	sp.status = ev.Status
	sp.ended = ev.State.Terminal()
	sp.mu.Unlock()

	switch ev.State {
	case pipeline.StateFailed:
		sp.bar.Abort(false)
	default:
		// reaching the total at DONE completes the bar
		sp.bar.SetCurrent(stageIndex[ev.State])
	}
}

// Finish ends the bar and flushes it. A job rejected before its first stage
// never reports a terminal state, so the bar is aborted here instead.
func (sp *stageProgress) Finish(err error) {
	sp.mu.Lock()
	ended := sp.ended
	if !ended && err != nil {
		sp.status = "Rejected: " + err.Error()
	}
	sp.mu.Unlock()

	if !ended {
		sp.bar.Abort(false)
	}
	sp.container.Wait()
}
