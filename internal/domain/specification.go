package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SpecKind 规格值的类型标签
type SpecKind uint8

const (
	SpecSingle SpecKind = iota + 1 // 单一取值，例如 "6.1英寸"
	SpecList                       // 可选列表，例如 ["128GB", "256GB"]
)

// SpecValue 是带类型标签的规格值：要么是单个字符串，要么是字符串列表
type SpecValue struct {
	Kind   SpecKind
	Single string
	List   []string
}

// SingleSpec 构造单值规格
func SingleSpec(v string) SpecValue {
	return SpecValue{Kind: SpecSingle, Single: v}
}

// ListSpec 构造列表规格
func ListSpec(vs ...string) SpecValue {
	return SpecValue{Kind: SpecList, List: append([]string(nil), vs...)}
}

// Values 以列表形式返回全部取值
func (v SpecValue) Values() []string {
	if v.Kind == SpecList {
		return append([]string(nil), v.List...)
	}
	return []string{v.Single}
}

// String 用于展示，列表以 " / " 连接
func (v SpecValue) String() string {
	if v.Kind == SpecList {
		return strings.Join(v.List, " / ")
	}
	return v.Single
}

// MarshalJSON 单值编码为字符串，列表编码为数组
func (v SpecValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case SpecList:
		list := v.List
		if list == nil {
			list = []string{}
		}
		return json.Marshal(list)
	case SpecSingle:
		return json.Marshal(v.Single)
	default:
		return nil, errors.New("spec value has no kind")
	}
}

// UnmarshalJSON 接受字符串、标量或字符串数组
func (v *SpecValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty spec value")
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode spec list: %w", err)
		}
		list := make([]string, 0, len(raw))
		for _, r := range raw {
			s, err := scalarString(r)
			if err != nil {
				return err
			}
			list = append(list, s)
		}
		*v = SpecValue{Kind: SpecList, List: list}
		return nil
	case '{':
		return errors.New("spec value must be a string or a list of strings")
	default:
		s, err := scalarString(data)
		if err != nil {
			return err
		}
		*v = SpecValue{Kind: SpecSingle, Single: s}
		return nil
	}
}

// scalarString 将 JSON 标量转为字符串；数字与布尔值保留字面量
func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode spec string: %w", err)
		}
		return s, nil
	}
	if len(raw) == 0 || raw[0] == '{' || raw[0] == '[' || string(raw) == "null" {
		return "", fmt.Errorf("unsupported spec scalar %s", string(raw))
	}
	return string(raw), nil
}

// SpecEntry 一条规格（键 + 值）
type SpecEntry struct {
	Key   string
	Value SpecValue
}

// Specifications 是有序的规格列表，JSON 形式为保持键顺序的对象
type Specifications []SpecEntry

// Get 按键查找规格
func (s Specifications) Get(key string) (SpecValue, bool) {
	for _, e := range s {
		if e.Key == key {
			return e.Value, true
		}
	}
	return SpecValue{}, false
}

// Set 设置规格，已存在的键原位替换，否则追加到末尾
func (s *Specifications) Set(key string, v SpecValue) {
	for i := range *s {
		if (*s)[i].Key == key {
			(*s)[i].Value = v
			return
		}
	}
	*s = append(*s, SpecEntry{Key: key, Value: v})
}

// Clone 深拷贝
func (s Specifications) Clone() Specifications {
	if s == nil {
		return nil
	}
	out := make(Specifications, len(s))
	for i, e := range s {
		out[i] = SpecEntry{Key: e.Key, Value: e.Value}
		if e.Value.List != nil {
			out[i].Value.List = append([]string(nil), e.Value.List...)
		}
	}
	return out
}

// MarshalJSON 按顺序输出对象
func (s Specifications) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("spec %q: %w", e.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 逐个读取对象成员以保留键顺序
func (s *Specifications) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode specifications: %w", err)
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("specifications must be a JSON object")
	}

	out := Specifications{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode specification key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("specification key must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode specification %q: %w", key, err)
		}
		var v SpecValue
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("specification %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode specifications: %w", err)
	}
	*s = out
	return nil
}
