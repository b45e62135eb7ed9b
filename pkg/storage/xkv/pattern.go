package xkv

import (
	"fmt"
	"regexp"
)

// compile 返回 pattern 对应的正则，空 pattern 返回 nil 表示匹配全部。
//
// 编译结果缓存在有界 LRU 中，重复的 Keys 调用不会反复编译同一模式。
func (c *Cache) compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	if re, ok := c.patterns.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, pattern, err)
	}
	c.patterns.Add(pattern, re)
	return re, nil
}
