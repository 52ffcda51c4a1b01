package pipeline

import (
	"context"
	"fmt"
)

type fifo struct {
	proc Processor
}

// FIFO returns a StageRunner that processes incoming payloads one at a time,
// in the order they arrive. Each input is passed to the specified processor
// and its output is emitted to the next stage before the following input is
// read, so a chain of FIFO stages preserves the order of the source.
func FIFO(proc Processor) StageRunner {
	return fifo{proc: proc}
}

// Run implements StageRunner.
func (r fifo) Run(ctx context.Context, params StageParams) {
	for {
		var (
			payloadIn Payload
			ok        bool
		)
		select {
		case <-ctx.Done():
			return
		case payloadIn, ok = <-params.Input():
			if !ok {
				return
			}
		}

		payloadOut, err := r.proc.Process(ctx, payloadIn)
		if err != nil {
			maybeEmitError(fmt.Errorf("pipeline stage %d: %w", params.StageIndex(), err), params.Error())
			return
		}

		// A nil output drops the payload from the rest of the pipeline.
		if payloadOut == nil {
			payloadIn.MarkAsProcessed()
			continue
		}

		select {
		case params.Output() <- payloadOut:
		case <-ctx.Done():
			return
		}
	}
}
