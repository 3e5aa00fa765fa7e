// Package parser 从模型返回的自由文本中恢复结构化数据。
package parser

import (
	"code-playground-go/internal/model"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed 表示模型输出无法被解析为审查结果。
var ErrMalformed = errors.New("malformed review output")

// MalformedError 携带原始文本，便于在界面或日志中诊断。
type MalformedError struct {
	Raw string
}

func (e *MalformedError) Error() string {
	return ErrMalformed.Error()
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

// wireSuggestion 与提示词中约定的 JSON 结构一一对应。
type wireSuggestion struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type wireReview struct {
	Suggestions  *[]wireSuggestion `json:"suggestions"`
	ImprovedCode *string           `json:"improved_code"`
}

// Normalize 依次尝试：整体严格解析；截取第一个 '{' 到最后一个 '}' 后严格解析。
// 两者都失败时返回 *MalformedError，不会拼凑出部分结果。
func Normalize(raw string) (*model.ReviewResult, error) {
	if result, err := parseStrict(raw); err == nil {
		return result, nil
	}
	if candidate, ok := enclosingObject(raw); ok {
		if result, err := parseStrict(candidate); err == nil {
			return result, nil
		}
	}
	return nil, &MalformedError{Raw: raw}
}

// enclosingObject 返回第一个 '{' 与最后一个 '}' 之间（含）的子串。
func enclosingObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func parseStrict(text string) (*model.ReviewResult, error) {
	text = strings.TrimSpace(text)
	dec := json.NewDecoder(strings.NewReader(text))
	var wire wireReview
	if err := dec.Decode(&wire); err != nil {
		return nil, err
	}
	// 对象之后不允许再有其它内容
	if strings.TrimSpace(text[dec.InputOffset():]) != "" {
		return nil, errors.New("trailing data after review object")
	}
	if wire.Suggestions == nil {
		return nil, errors.New("missing suggestions")
	}

	result := &model.ReviewResult{Suggestions: make([]model.Suggestion, 0, len(*wire.Suggestions))}
	for i, s := range *wire.Suggestions {
		kind, ok := model.ParseSuggestionKind(s.Type)
		if !ok {
			return nil, fmt.Errorf("suggestion %d: unknown type %q", i, s.Type)
		}
		severity, ok := model.ParseSeverity(s.Severity)
		if !ok {
			return nil, fmt.Errorf("suggestion %d: unknown severity %q", i, s.Severity)
		}
		result.Suggestions = append(result.Suggestions, model.Suggestion{
			Kind:     kind,
			Severity: severity,
			Message:  s.Message,
		})
	}
	if wire.ImprovedCode != nil {
		result.ImprovedCode = *wire.ImprovedCode
	}
	return result, nil
}
