package mqtt

import (
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	"github.com/golang/protobuf/ptypes/timestamp"

	"github.com/robotalks/cnc.go/pkg/system"
)

// SignalEvent is published when the foreground consumes runtime signals.
type SignalEvent struct {
	Board   string               `protobuf:"bytes,1,opt,name=board,proto3" json:"board,omitempty"`
	Signals []string             `protobuf:"bytes,2,rep,name=signals,proto3" json:"signals,omitempty"`
	State   string               `protobuf:"bytes,3,opt,name=state,proto3" json:"state,omitempty"`
	Time    *timestamp.Timestamp `protobuf:"bytes,4,opt,name=time,proto3" json:"time,omitempty"`
}

// NewSignalEvent creates a SignalEvent.
func NewSignalEvent(board string, sig system.Signal, state system.State, t time.Time) *SignalEvent {
	ev := &SignalEvent{Board: board, Signals: sig.Names(), State: state.String()}
	if ts, err := ptypes.TimestampProto(t); err == nil {
		ev.Time = ts
	}
	return ev
}

// ProtoMessage implements proto.Message.
func (m *SignalEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SignalEvent) Reset() { *m = SignalEvent{} }

// String implements proto.Message.
func (m *SignalEvent) String() string { return proto.CompactTextString(m) }
