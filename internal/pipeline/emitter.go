package pipeline

import "github.com/soyeahso/quotemill/internal/domain"

// eventBuffer bounds the progress stream. A consumer that lags past the
// buffer misses intermediate events; terminal events are never dropped
// because the producer stops after sending one.
const eventBuffer = 16

// emitter is the one-shot progress stream for a single pipeline run.
// Single producer, single consumer, closed by the producer after the
// terminal event.
type emitter struct {
	ch       chan domain.ProgressEvent
	terminal bool
}

func newEmitter() *emitter {
	return &emitter{ch: make(chan domain.ProgressEvent, eventBuffer)}
}

func (e *emitter) events() <-chan domain.ProgressEvent { return e.ch }

func (e *emitter) stageStart(stage domain.Stage) {
	e.send(domain.ProgressEvent{Type: domain.ProgressStageStart, Stage: stage})
}

func (e *emitter) progress(stage domain.Stage, msg string) {
	e.send(domain.ProgressEvent{Type: domain.ProgressStageProgress, Stage: stage, Message: msg})
}

// complete emits the terminal success event and closes the stream.
func (e *emitter) complete(result *domain.PipelineResult) {
	e.send(domain.ProgressEvent{Type: domain.ProgressComplete, Result: result})
	e.close()
}

// fail emits the terminal failure event and closes the stream.
func (e *emitter) fail(stage domain.Stage, err error) {
	e.send(domain.ProgressEvent{Type: domain.ProgressFailed, Stage: stage, Error: err.Error()})
	e.close()
}

func (e *emitter) send(ev domain.ProgressEvent) {
	if e.terminal {
		return
	}
	if ev.Type == domain.ProgressComplete || ev.Type == domain.ProgressFailed {
		// Terminal events block until delivered; the buffer only ever
		// absorbs intermediate ones.
		e.ch <- ev
		e.terminal = true
		return
	}
	select {
	case e.ch <- ev:
	default:
	}
}

func (e *emitter) close() {
	close(e.ch)
}
