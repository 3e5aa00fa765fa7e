package parser

import (
	"regexp"
	"strings"
)

const fence = "```"

// languageTag 匹配开围栏后的语言名，例如 js、c++、objective-c
var languageTag = regexp.MustCompile(`^[A-Za-z0-9_+#.-]+$`)

// findCodeBlock 返回第一个完整围栏代码块内部的原始文本。
func findCodeBlock(text string) (string, bool) {
	open := strings.Index(text, fence)
	if open < 0 {
		return "", false
	}
	rest := text[open+len(fence):]
	closing := strings.Index(rest, fence)
	if closing < 0 {
		return "", false
	}
	return rest[:closing], true
}

// HasCodeBlock 判断文本中是否存在完整的围栏代码块。
func HasCodeBlock(text string) bool {
	_, ok := findCodeBlock(text)
	return ok
}

// ExtractCode 返回第一个围栏代码块的内容：去掉围栏与语言标记并裁剪首尾空白。
// 没有代码块时原样返回 text。
func ExtractCode(text string) string {
	inner, ok := findCodeBlock(text)
	if !ok {
		return text
	}
	// 开围栏同一行上只有语言名时才去掉，```foo() 这样的首行属于代码
	if nl := strings.IndexByte(inner, '\n'); nl > 0 {
		if languageTag.MatchString(strings.TrimRight(inner[:nl], "\r")) {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}

// WrapCode 把代码包装成带语言标记的围栏代码块，用于展示。
func WrapCode(code, language string) string {
	return fence + language + "\n" + code + "\n" + fence
}
