package xkv

import (
	"strconv"
	"strings"
)

// Kind 表示 Value 的形态。
type Kind uint8

const (
	// KindNil 表示缺失值，是 Value 的零值形态。
	KindNil Kind = iota
	// KindString 表示字符串标量。
	KindString
	// KindInt 表示 int64 计数器。
	KindInt
	// KindList 表示队列快照，只由读操作产生。
	KindList
)

// String 返回 Kind 的可读名称。
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindList:
		return "list"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value 是缓存中存放的值，一个带标签的变体。
//
// 零值即 Nil（缺失哨兵）。Value 按值传递，List 快照在产生时已拷贝，
// 调用方修改返回的切片不会影响缓存内部状态。
type Value struct {
	kind Kind
	s    string
	n    int64
	list []Value
}

// Nil 是缺失哨兵，MGet 用它填充不存在的 key。
var Nil = Value{}

// String 构造字符串值。
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Int 构造整数值。
func Int(n int64) Value {
	return Value{kind: KindInt, n: n}
}

// listOf 构造队列快照，items 会被拷贝。
func listOf(items []Value) Value {
	snapshot := make([]Value, len(items))
	copy(snapshot, items)
	return Value{kind: KindList, list: snapshot}
}

// Kind 返回值的形态。
func (v Value) Kind() Kind { return v.kind }

// IsNil 报告是否为缺失哨兵。
func (v Value) IsNil() bool { return v.kind == KindNil }

// Str 返回值的字符串形式。Int 以十进制呈现，Nil 与 List 返回空串。
func (v Value) Str() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.n, 10)
	default:
		return ""
	}
}

// Int64 返回整数值。String 形态在可解析为十进制 int64 时也返回 true。
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.n, true
	case KindString:
		n, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// List 返回队列快照的元素（从最旧到最新）。非 List 形态返回 nil。
func (v Value) List() []Value {
	if v.kind != KindList {
		return nil
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out
}

// Equal 报告两个值是否形态相同且内容相同。
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == other.s
	case KindInt:
		return v.n == other.n
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String 返回用于展示的形式：Nil 为 "(nil)"，字符串带引号，列表逐行编号。
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.s)
	case KindInt:
		return "(integer) " + strconv.FormatInt(v.n, 10)
	case KindList:
		if len(v.list) == 0 {
			return "(empty list)"
		}
		var b strings.Builder
		for i, item := range v.list {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(") ")
			b.WriteString(item.String())
		}
		return b.String()
	default:
		return "(nil)"
	}
}

// scalar 报告值能否作为标量或队列元素写入。
func (v Value) scalar() bool {
	return v.kind == KindString || v.kind == KindInt
}
