package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

const prompt = "zencache> "

// executor 执行一条控制台命令。
type executor interface {
	Execute(ctx context.Context, command string, args []string) (string, error)
}

// startInputReader 启动输入读取 goroutine。
// 设计决策: inputCh 无缓冲，使用 select 保护发送，
// 防止 context 取消后 goroutine 在 inputCh 发送端永久阻塞。
func startInputReader(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	inputCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case inputCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
		close(inputCh)
	}()

	return inputCh, errCh
}

// runREPL 运行控制台循环，EOF、quit/exit 或 ctx 结束时返回 nil。
func runREPL(ctx context.Context, in io.Reader, out io.Writer, exec executor) error {
	inputCh, errCh := startInputReader(ctx, in)

	fmt.Fprintln(out, "zencache 交互模式")
	fmt.Fprintln(out, "输入 'help' 查看可用命令，'quit' 或 'exit' 退出")
	fmt.Fprintln(out)

	for {
		fmt.Fprint(out, prompt)

		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\n再见!")
			return nil
		case err := <-errCh:
			return fmt.Errorf("读取输入错误: %w", err)
		case line, ok := <-inputCh:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			if processLine(ctx, out, exec, strings.TrimSpace(line)) {
				return nil
			}
		}
	}
}

// processLine 处理单行输入，返回 true 表示应该退出。
func processLine(ctx context.Context, out io.Writer, exec executor, line string) bool {
	if line == "" {
		return false
	}
	if line == "quit" || line == "exit" {
		fmt.Fprintln(out, "再见!")
		return true
	}

	parts := parseCommandLine(line)
	if len(parts) == 0 {
		return false
	}

	reply, err := exec.Execute(ctx, parts[0], parts[1:])
	if err != nil {
		fmt.Fprintf(out, "(error) %v\n", err)
		return false
	}
	fmt.Fprintln(out, reply)
	return false
}

// parseCommandLine 解析命令行，支持引号和反斜杠转义。
// 引号内的空串（如 set k ""）保留为空参数。
func parseCommandLine(line string) []string {
	var parts []string
	var current strings.Builder
	var inQuote, quoted bool
	var quoteChar rune
	var escaped bool

	flush := func() {
		if current.Len() > 0 || quoted {
			parts = append(parts, current.String())
			current.Reset()
		}
		quoted = false
	}

	for _, r := range line {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		if r == '\\' {
			escaped = true
			continue
		}

		switch {
		case isQuoteStart(r, inQuote):
			inQuote = true
			quoted = true
			quoteChar = r
		case isQuoteEnd(r, quoteChar, inQuote):
			inQuote = false
			quoteChar = 0
		case isWordSeparator(r, inQuote):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return parts
}

func isQuoteStart(r rune, inQuote bool) bool {
	return (r == '"' || r == '\'') && !inQuote
}

func isQuoteEnd(r, quoteChar rune, inQuote bool) bool {
	return r == quoteChar && inQuote
}

// 设计决策: 空格和 Tab 都作为分词符，管道输入的脚本常用 Tab 对齐。
func isWordSeparator(r rune, inQuote bool) bool {
	return (r == ' ' || r == '\t') && !inQuote
}
