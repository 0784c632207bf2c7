// frames.go

package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrTruncatedFrame 帧数据不完整
var ErrTruncatedFrame = errors.New("truncated frame")

// ObservationFrame 字段编号
const (
	obsFieldEpisodeID     protowire.Number = 1
	obsFieldStep          protowire.Number = 2
	obsFieldObservation   protowire.Number = 3
	obsFieldReward        protowire.Number = 4
	obsFieldDone          protowire.Number = 5
	obsFieldEpisodeReturn protowire.Number = 6
	obsFieldTruncated     protowire.Number = 7
)

// ActionFrame 字段编号
const (
	actFieldAction protowire.Number = 1
)

// ObservationFrame 每步下发给训练端的观测帧
type ObservationFrame struct {
	EpisodeID     string    `json:"episode_id" msgpack:"episode_id"`
	Step          uint64    `json:"step" msgpack:"step"`
	Observation   []float32 `json:"observation" msgpack:"observation"`
	Reward        float32   `json:"reward" msgpack:"reward"`
	Done          bool      `json:"done" msgpack:"done"`
	EpisodeReturn float32   `json:"episode_return" msgpack:"episode_return"`
	Truncated     bool      `json:"truncated" msgpack:"truncated"`
}

// ActionFrame 训练端上报的动作帧
type ActionFrame struct {
	Action []float32 `json:"action" msgpack:"action"`
}

// MarshalBinary 按 protobuf 线格式编码
func (f *ObservationFrame) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 32+len(f.EpisodeID)+len(f.Observation)*4)

	if f.EpisodeID != "" {
		b = protowire.AppendTag(b, obsFieldEpisodeID, protowire.BytesType)
		b = protowire.AppendString(b, f.EpisodeID)
	}
	if f.Step != 0 {
		b = protowire.AppendTag(b, obsFieldStep, protowire.VarintType)
		b = protowire.AppendVarint(b, f.Step)
	}
	if len(f.Observation) > 0 {
		b = protowire.AppendTag(b, obsFieldObservation, protowire.BytesType)
		b = protowire.AppendBytes(b, packFloats(f.Observation))
	}
	if f.Reward != 0 {
		b = protowire.AppendTag(b, obsFieldReward, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(f.Reward))
	}
	if f.Done {
		b = protowire.AppendTag(b, obsFieldDone, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if f.EpisodeReturn != 0 {
		b = protowire.AppendTag(b, obsFieldEpisodeReturn, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(f.EpisodeReturn))
	}
	if f.Truncated {
		b = protowire.AppendTag(b, obsFieldTruncated, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b, nil
}

// UnmarshalBinary 解码观测帧，未知字段跳过
func (f *ObservationFrame) UnmarshalBinary(b []byte) error {
	*f = ObservationFrame{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return truncated(n)
		}
		b = b[n:]

		switch {
		case num == obsFieldEpisodeID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return truncated(n)
			}
			f.EpisodeID = v
			b = b[n:]
		case num == obsFieldStep && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return truncated(n)
			}
			f.Step = v
			b = b[n:]
		case num == obsFieldObservation:
			vals, n, err := consumeFloats(b, typ)
			if err != nil {
				return err
			}
			f.Observation = append(f.Observation, vals...)
			b = b[n:]
		case num == obsFieldReward && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return truncated(n)
			}
			f.Reward = math.Float32frombits(v)
			b = b[n:]
		case num == obsFieldDone && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return truncated(n)
			}
			f.Done = protowire.DecodeBool(v)
			b = b[n:]
		case num == obsFieldEpisodeReturn && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return truncated(n)
			}
			f.EpisodeReturn = math.Float32frombits(v)
			b = b[n:]
		case num == obsFieldTruncated && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return truncated(n)
			}
			f.Truncated = protowire.DecodeBool(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return truncated(n)
			}
			b = b[n:]
		}
	}
	return nil
}

// MarshalBinary 按 protobuf 线格式编码
func (f *ActionFrame) MarshalBinary() ([]byte, error) {
	if len(f.Action) == 0 {
		return nil, nil
	}
	b := protowire.AppendTag(nil, actFieldAction, protowire.BytesType)
	return protowire.AppendBytes(b, packFloats(f.Action)), nil
}

// UnmarshalBinary 解码动作帧，兼容 packed 与非 packed 编码
func (f *ActionFrame) UnmarshalBinary(b []byte) error {
	*f = ActionFrame{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return truncated(n)
		}
		b = b[n:]

		if num == actFieldAction {
			vals, n, err := consumeFloats(b, typ)
			if err != nil {
				return err
			}
			f.Action = append(f.Action, vals...)
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return truncated(n)
		}
		b = b[n:]
	}
	return nil
}

func packFloats(vals []float32) []byte {
	buf := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		buf = protowire.AppendFixed32(buf, math.Float32bits(v))
	}
	return buf
}

func consumeFloats(b []byte, typ protowire.Type) ([]float32, int, error) {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return nil, 0, truncated(n)
		}
		return []float32{math.Float32frombits(v)}, n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, 0, truncated(n)
		}
		if len(packed)%4 != 0 {
			return nil, 0, fmt.Errorf("%w: packed float 长度 %d 不是4的倍数", ErrTruncatedFrame, len(packed))
		}
		vals := make([]float32, 0, len(packed)/4)
		for len(packed) > 0 {
			v, m := protowire.ConsumeFixed32(packed)
			vals = append(vals, math.Float32frombits(v))
			packed = packed[m:]
		}
		return vals, n, nil
	default:
		return nil, 0, fmt.Errorf("%w: 浮点字段的线类型 %d 不支持", ErrTruncatedFrame, typ)
	}
}

func truncated(n int) error {
	return fmt.Errorf("%w: %v", ErrTruncatedFrame, protowire.ParseError(n))
}
