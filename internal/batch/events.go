package batch

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// Events sent on Runner.Events while a batch is running.

type FileStartEvent struct {
	RunID uuid.UUID
	Path  string
	Index int // zero-based position in the batch
	Total int
}

type SegmentDoneEvent struct {
	RunID   uuid.UUID
	Path    string
	Output  string
	Index   int
	Planned int // 0 for native runs, where the count is only known afterwards
}

type FileDoneEvent struct {
	RunID    uuid.UUID
	Path     string
	Segments int
	Skipped  bool
}

type FileFailedEvent struct {
	RunID uuid.UUID
	Path  string
	Err   error
}

type FinishedEvent struct {
	Report *Report
}

func (r *Runner) emit(ev interface{}) {
	if r.Events == nil {
		return
	}
	select {
	case r.Events <- ev:
	default:
	}
}

// finishTimeout bounds how long Run waits for a reader to take the
// FinishedEvent.
var finishTimeout = 2 * time.Second

// emitFinished blocks until the reader takes the event or finishTimeout
// passes.
func (r *Runner) emitFinished(rep *Report) {
	if r.Events == nil {
		return
	}
	t := time.NewTimer(finishTimeout)
	defer t.Stop()
	select {
	case r.Events <- FinishedEvent{Report: rep}:
	case <-t.C:
		log.Println("⚠️ 完了イベントの受信者がいません")
	}
}
