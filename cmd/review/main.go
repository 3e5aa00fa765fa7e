// Package main 是命令行审查工具：通过 HTTP 调用已部署的网关，审查本地文件并可追加一个问题。
package main

import (
	"code-playground-go/internal/model"
	"code-playground-go/internal/playground"
	"code-playground-go/pkg/assistant"
	"code-playground-go/pkg/log"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

func main() {
	addr := flag.String("addr", "http://localhost:5000", "网关地址")
	file := flag.String("file", "", "待审查的源文件，留空从标准输入读取")
	question := flag.String("ask", "", "审查后追加的聊天问题（可选）")
	lang := flag.String("lang", "js", "改进代码的语言标记")
	timeout := flag.Duration("timeout", 90*time.Second, "单次请求超时")
	flag.Parse()

	log.Init(log.Options{Level: "warn", Format: "console"})
	defer log.Sync()

	code, err := readSource(*file)
	if err != nil {
		log.Fatal("读取源代码失败", err)
	}

	client := assistant.NewClient(*addr, *timeout)
	if err := run(context.Background(), client, code, *question, *lang, os.Stdout); err != nil {
		log.Fatal("审查失败", err)
	}
}

func readSource(path string) (string, error) {
	if path == "" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

// run 在一个新会话中完成分析和可选的提问，并把结果写到 out。
func run(ctx context.Context, gw playground.Gateway, code, question, lang string, out io.Writer) error {
	session := playground.NewSession(gw, playground.Options{
		ID:           "cli",
		CodeLanguage: lang,
		InitialCode:  code,
	})

	if err := session.Analyze(ctx); err != nil {
		return err
	}
	suggestions := session.Suggestions()
	if len(suggestions) == 0 {
		fmt.Fprintln(out, "没有审查建议")
	}
	for i, s := range suggestions {
		fmt.Fprintf(out, "%d. [%s/%s] %s\n", i+1, s.Kind, s.Severity, s.Message)
	}

	var failed bool
	if question != "" {
		turn, err := session.SubmitChat(ctx, question)
		if err != nil {
			return err
		}
		failed = turn.State == model.TurnFailed
	}

	// 分析提示之后的助手消息（改进代码、错误提示、聊天回复）依次输出
	for _, t := range session.Turns() {
		if t.Role == model.RoleAssistant && t.Content != playground.AnalyzingText {
			fmt.Fprintln(out)
			fmt.Fprintln(out, t.Content)
		}
	}
	if failed {
		return errors.New("chat request failed")
	}
	return nil
}
