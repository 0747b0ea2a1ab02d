// Package telemetry reports session events for remote monitoring.
package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/rs/xid"
)

// Event kinds reported by a host session.
const (
	KindSessionStart  = "session.start"
	KindBufferDrained = "buffer.drained"
	KindBufferEmpty   = "buffer.empty"
	KindTimeout       = "timeout"
	KindWrongIndex    = "wrong_index"
	KindShortWrite    = "short_write"
	KindOverrun       = "overrun"
	KindShutdown      = "shutdown"
)

// Event is a single telemetry record.
type Event struct {
	Session string
	Kind    string
	Time    time.Time
	Fields  map[string]interface{}
}

// NewSessionID generates a globally unique session id.
func NewSessionID() string {
	return xid.New().String()
}

// String implements fmt.Stringer.
func (e *Event) String() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", e.Session, e.Kind)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Fields[k])
	}
	return sb.String()
}

// Struct converts the event to a protobuf Struct. Unsupported field
// values are encoded with fmt.
func (e *Event) Struct() *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = valueOf(v)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"session": stringValue(e.Session),
		"kind":    stringValue(e.Kind),
		"time":    stringValue(e.Time.UTC().Format(time.RFC3339Nano)),
		"fields":  {Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{Fields: fields}}},
	}}
}

// Marshal encodes the event in protobuf wire format.
func (e *Event) Marshal() ([]byte, error) {
	return proto.Marshal(e.Struct())
}

// Unmarshal decodes an event. Numeric fields are decoded as float64.
func Unmarshal(data []byte) (*Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	e := &Event{
		Session: s.Fields["session"].GetStringValue(),
		Kind:    s.Fields["kind"].GetStringValue(),
		Fields:  make(map[string]interface{}),
	}
	if ts := s.Fields["time"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, err
		}
		e.Time = t
	}
	if fields := s.Fields["fields"].GetStructValue(); fields != nil {
		for k, v := range fields.Fields {
			e.Fields[k] = interfaceOf(v)
		}
	}
	return e, nil
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func numberValue(n float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: n}}
}

func valueOf(v interface{}) *structpb.Value {
	switch val := v.(type) {
	case nil:
		return &structpb.Value{Kind: &structpb.Value_NullValue{}}
	case string:
		return stringValue(val)
	case bool:
		return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: val}}
	case int:
		return numberValue(float64(val))
	case int64:
		return numberValue(float64(val))
	case uint32:
		return numberValue(float64(val))
	case uint64:
		return numberValue(float64(val))
	case float64:
		return numberValue(val)
	case time.Duration:
		return stringValue(val.String())
	}
	return stringValue(fmt.Sprint(v))
}

func interfaceOf(v *structpb.Value) interface{} {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_BoolValue:
		return k.BoolValue
	case *structpb.Value_NumberValue:
		return k.NumberValue
	}
	return nil
}
