package pause

import (
	"fmt"
	"math"

	"pausesync/internal/session"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ProtocolVersion is bumped on any change to the message shape. Peers
	// drop messages carrying any other version.
	ProtocolVersion = 2

	// Channel identifies pause traffic on the messaging fabric.
	Channel = "pausesync.pause/state"
)

const (
	keyVersion     = "version"
	keyKind        = "kind"
	keyValue       = "value"
	keyPausingPeer = "pausing_peer"
	keyClockOffset = "clock_offset"
)

// Kind selects the sub-protocol a message belongs to.
type Kind uint8

const (
	// KindRequest is a follower asking the authority to change pause state.
	KindRequest Kind = iota + 1
	// KindPause is the authority's binding pause command.
	KindPause
	// KindCanPause announces whether followers may request pauses.
	KindCanPause
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindPause:
		return "pause"
	case KindCanPause:
		return "can_pause"
	default:
		return "unknown"
	}
}

func parseKind(s string) (Kind, bool) {
	switch s {
	case "request":
		return KindRequest, true
	case "pause":
		return KindPause, true
	case "can_pause":
		return KindCanPause, true
	default:
		return 0, false
	}
}

// Message is one pause protocol message. PausingPeer and ClockOffset are only
// ever set on KindPause.
type Message struct {
	Version     int
	Kind        Kind
	Value       bool
	PausingPeer *session.PeerID
	ClockOffset *float64
}

func NewRequest(paused bool) Message {
	return Message{Version: ProtocolVersion, Kind: KindRequest, Value: paused}
}

func NewCommand(paused bool, pausingPeer session.PeerID, clockOffset float64) Message {
	return Message{
		Version:     ProtocolVersion,
		Kind:        KindPause,
		Value:       paused,
		PausingPeer: &pausingPeer,
		ClockOffset: &clockOffset,
	}
}

func NewCanPause(allowed bool) Message {
	return Message{Version: ProtocolVersion, Kind: KindCanPause, Value: allowed}
}

// Encode serialises m as a protobuf Struct.
func Encode(m Message) ([]byte, error) {
	if _, ok := parseKind(m.Kind.String()); !ok {
		return nil, fmt.Errorf("encode pause message: invalid kind %d", m.Kind)
	}
	if m.Kind != KindPause && (m.PausingPeer != nil || m.ClockOffset != nil) {
		return nil, fmt.Errorf("encode pause message: %s carries command-only fields", m.Kind)
	}

	fields := map[string]any{
		keyVersion: m.Version,
		keyKind:    m.Kind.String(),
		keyValue:   m.Value,
	}
	if m.PausingPeer != nil {
		fields[keyPausingPeer] = int(*m.PausingPeer)
	}
	if m.ClockOffset != nil {
		if math.IsNaN(*m.ClockOffset) || math.IsInf(*m.ClockOffset, 0) {
			return nil, fmt.Errorf("encode pause message: clock offset %v is not finite", *m.ClockOffset)
		}
		fields[keyClockOffset] = *m.ClockOffset
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode pause message: %w", err)
	}
	b, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode pause message: %w", err)
	}
	return b, nil
}

// Decode parses a pause message. The version is checked before anything else,
// so a peer speaking another version yields ErrVersionMismatch even when the
// rest of its message would not parse.
func Decode(b []byte) (Message, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return Message{}, &DecodeError{Message: "not a protobuf struct", Err: err}
	}
	fields := s.GetFields()

	version, err := intField(fields, keyVersion)
	if err != nil {
		return Message{}, err
	}
	if version != ProtocolVersion {
		return Message{Version: version}, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, version, ProtocolVersion)
	}

	rawKind, ok := fields[keyKind].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return Message{}, &DecodeError{Field: keyKind, Message: "missing or not a string"}
	}
	kind, ok := parseKind(rawKind.StringValue)
	if !ok {
		return Message{}, &DecodeError{Field: keyKind, Message: fmt.Sprintf("unknown kind %q", rawKind.StringValue)}
	}

	rawValue, ok := fields[keyValue].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return Message{}, &DecodeError{Field: keyValue, Message: "missing or not a bool"}
	}

	m := Message{Version: version, Kind: kind, Value: rawValue.BoolValue}

	switch kind {
	case KindRequest, KindCanPause:
		if _, ok := fields[keyPausingPeer]; ok {
			return Message{}, &DecodeError{Field: keyPausingPeer, Message: "only allowed on pause commands"}
		}
		if _, ok := fields[keyClockOffset]; ok {
			return Message{}, &DecodeError{Field: keyClockOffset, Message: "only allowed on pause commands"}
		}
	case KindPause:
		if _, ok := fields[keyPausingPeer]; ok {
			ordinal, err := intField(fields, keyPausingPeer)
			if err != nil {
				return Message{}, err
			}
			id := session.PeerID(ordinal)
			m.PausingPeer = &id
		}
		if v, ok := fields[keyClockOffset]; ok {
			n, ok := v.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return Message{}, &DecodeError{Field: keyClockOffset, Message: "not a number"}
			}
			offset := n.NumberValue
			m.ClockOffset = &offset
		}
	}
	return m, nil
}

func intField(fields map[string]*structpb.Value, key string) (int, error) {
	n, ok := fields[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, &DecodeError{Field: key, Message: "missing or not a number"}
	}
	v := n.NumberValue
	if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
		return 0, &DecodeError{Field: key, Message: fmt.Sprintf("%v is not an integer", v)}
	}
	return int(v), nil
}
