package services

import (
	"context"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// EventBroadcaster entrega um ChangeEvent para todas as sessões conectadas.
// Entrega é best-effort: implementações registram falhas e não as propagam.
type EventBroadcaster interface {
	Broadcast(ctx context.Context, evt attendance.ChangeEvent)
}

// EventRecorder persists committed events for auditing. It is never read back
// for redelivery.
type EventRecorder interface {
	Record(evt attendance.ChangeEvent) error
}

// BroadcastFanout sends every event to each non-nil broadcaster in order.
type BroadcastFanout []EventBroadcaster

func (f BroadcastFanout) Broadcast(ctx context.Context, evt attendance.ChangeEvent) {
	for _, b := range f {
		if b != nil {
			b.Broadcast(ctx, evt)
		}
	}
}

type recordingBroadcaster struct {
	recorder EventRecorder
	log      waLog.Logger
}

// NewRecordingBroadcaster adapts an EventRecorder so it can sit in a
// BroadcastFanout next to the live hub.
func NewRecordingBroadcaster(recorder EventRecorder, log waLog.Logger) EventBroadcaster {
	return &recordingBroadcaster{recorder: recorder, log: log}
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, evt attendance.ChangeEvent) {
	if b == nil || b.recorder == nil {
		return
	}
	if err := b.recorder.Record(evt); err != nil && b.log != nil {
		b.log.Warnf("failed to record event %s person=%d: %v", evt.Kind, evt.PersonID, err)
	}
}
