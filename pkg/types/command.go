package types

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// type of FSM command
type CommandType uint

const (
	CommandTypeSetIfAbsent CommandType = iota + 1
	CommandTypeCompareAndDelete
	CommandTypeIncrement
	CommandTypeExpireKey
)

// interface all FSM commands implement
type Command interface {
	Type() CommandType
	ToProto() (*structpb.Struct, error)
}

// sets key=value only when the key is absent, with expiry
type SetIfAbsentCmd struct {
	Key   string
	Value string
	TTL   time.Duration
}

func (c SetIfAbsentCmd) Type() CommandType { return CommandTypeSetIfAbsent }

func (c SetIfAbsentCmd) ToProto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type":   float64(c.Type()),
		"key":    c.Key,
		"value":  c.Value,
		"ttl_ms": float64(CeilMillis(c.TTL)),
	})
}

// deletes key only when its value equals Expected
type CompareAndDeleteCmd struct {
	Key      string
	Expected string
}

func (c CompareAndDeleteCmd) Type() CommandType { return CommandTypeCompareAndDelete }

func (c CompareAndDeleteCmd) ToProto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type":  float64(c.Type()),
		"key":   c.Key,
		"value": c.Expected,
	})
}

// atomically increments a counter and returns the new value
type IncrementCmd struct {
	Key string
}

func (c IncrementCmd) Type() CommandType { return CommandTypeIncrement }

func (c IncrementCmd) ToProto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type": float64(c.Type()),
		"key":  c.Key,
	})
}

// removes a key whose ttl has passed (internal, issued by the expiry sweep)
type ExpireKeyCmd struct {
	Key   string
	Value string
}

func (c ExpireKeyCmd) Type() CommandType { return CommandTypeExpireKey }

func (c ExpireKeyCmd) ToProto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type":  float64(c.Type()),
		"key":   c.Key,
		"value": c.Value,
	})
}

// converts the wire form back into a command
func FromProtoCommand(s *structpb.Struct) (Command, error) {
	fields := s.GetFields()
	typ := CommandType(fields["type"].GetNumberValue())
	key := fields["key"].GetStringValue()
	value := fields["value"].GetStringValue()

	switch typ {
	case CommandTypeSetIfAbsent:
		ttl := time.Duration(fields["ttl_ms"].GetNumberValue()) * time.Millisecond
		return SetIfAbsentCmd{Key: key, Value: value, TTL: ttl}, nil
	case CommandTypeCompareAndDelete:
		return CompareAndDeleteCmd{Key: key, Expected: value}, nil
	case CommandTypeIncrement:
		return IncrementCmd{Key: key}, nil
	case CommandTypeExpireKey:
		return ExpireKeyCmd{Key: key, Value: value}, nil
	default:
		return nil, fmt.Errorf("unknown command type: %d", typ)
	}
}
