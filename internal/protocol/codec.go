package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// 帧编码名称
const (
	EncodingJSON    = "json"
	EncodingProto   = "proto"
	EncodingMsgpack = "msgpack"
)

// ErrUnknownEncoding 不支持的编码
var ErrUnknownEncoding = errors.New("unknown frame encoding")

// Codec 观测帧与动作帧的编解码
type Codec interface {
	Name() string
	Binary() bool
	EncodeObservation(f *ObservationFrame) ([]byte, error)
	DecodeAction(b []byte) (*ActionFrame, error)
}

// CodecFor 按名称选择编码，空字符串为 JSON
func CodecFor(name string) (Codec, error) {
	switch name {
	case "", EncodingJSON:
		return JSONCodec{}, nil
	case EncodingProto:
		return ProtoCodec{}, nil
	case EncodingMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
}

// JSONCodec 文本 JSON
type JSONCodec struct{}

func (JSONCodec) Name() string { return EncodingJSON }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) EncodeObservation(f *ObservationFrame) ([]byte, error) {
	return json.Marshal(f)
}

func (JSONCodec) DecodeAction(b []byte) (*ActionFrame, error) {
	var f ActionFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("解析动作帧失败: %w", err)
	}
	return &f, nil
}

// ProtoCodec protobuf 线格式
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return EncodingProto }
func (ProtoCodec) Binary() bool { return true }

func (ProtoCodec) EncodeObservation(f *ObservationFrame) ([]byte, error) {
	return f.MarshalBinary()
}

func (ProtoCodec) DecodeAction(b []byte) (*ActionFrame, error) {
	var f ActionFrame
	if err := f.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &f, nil
}

// MsgpackCodec MessagePack
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return EncodingMsgpack }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) EncodeObservation(f *ObservationFrame) ([]byte, error) {
	return msgpack.Marshal(f)
}

func (MsgpackCodec) DecodeAction(b []byte) (*ActionFrame, error) {
	var f ActionFrame
	if err := msgpack.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("解析动作帧失败: %w", err)
	}
	return &f, nil
}
