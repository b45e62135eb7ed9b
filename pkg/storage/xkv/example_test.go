package xkv_test

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/zencache/pkg/storage/xkv"
)

func Example() {
	cache, err := xkv.New()
	if err != nil {
		panic(err)
	}
	ctx := context.Background()

	_ = cache.Set(ctx, "greeting", xkv.String("hello"))
	_, _ = cache.Append(ctx, "greeting", ", world")
	v, _ := cache.Get(ctx, "greeting")
	fmt.Println(v)

	n, _ := cache.IncrBy(ctx, "visits", 5)
	fmt.Println(n)

	ok, _ := cache.Expire(ctx, "visits", time.Minute, xkv.ExpireNX)
	fmt.Println(ok, cache.TTL(ctx, "visits") > 59)
	// Output:
	// "hello, world"
	// 5
	// true true
}

func ExampleCache_RPop() {
	cache, _ := xkv.New()
	ctx := context.Background()

	_, _ = cache.LPush(ctx, "jobs", xkv.String("first"))
	_, _ = cache.LPush(ctx, "jobs", xkv.String("second"))

	v, ok, _ := cache.RPop(ctx, "jobs", time.Second)
	fmt.Println(v, ok)

	// 队列为空时等待到超时
	_, ok, _ = cache.RPop(ctx, "empty", 10*time.Millisecond)
	fmt.Println(ok)
	// Output:
	// "first" true
	// false
}

func ExampleCache_Keys() {
	cache, _ := xkv.New()
	ctx := context.Background()

	_ = cache.MSet(ctx, map[string]xkv.Value{
		"user:1":  xkv.String("a"),
		"user:2":  xkv.String("b"),
		"order:1": xkv.Int(9),
	})
	keys, _ := cache.Keys(ctx, "^user:")
	fmt.Println(keys)
	// Output:
	// [user:1 user:2]
}
