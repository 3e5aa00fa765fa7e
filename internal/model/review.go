package model

import "strings"

// SuggestionKind 是审查建议的类别。
type SuggestionKind string

const (
	KindPerformance SuggestionKind = "performance"
	KindSecurity    SuggestionKind = "security"
	KindLogic       SuggestionKind = "logic"
)

// Severity 是审查建议的严重程度。
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSuggestionKind 忽略大小写与首尾空白，未知类别返回 false。
func ParseSuggestionKind(s string) (SuggestionKind, bool) {
	switch k := SuggestionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPerformance, KindSecurity, KindLogic:
		return k, true
	}
	return "", false
}

// ParseSeverity 忽略大小写与首尾空白，未知级别返回 false。
func ParseSeverity(s string) (Severity, bool) {
	switch v := Severity(strings.ToLower(strings.TrimSpace(s))); v {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return v, true
	}
	return "", false
}

// Suggestion 是模型给出的一条审查建议。线上字段名沿用 "type"。
type Suggestion struct {
	Kind     SuggestionKind `json:"type"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
}

// ReviewResult 是一次代码分析的结构化结果。
// ImprovedCode 为空表示模型没有给出改进版本。
type ReviewResult struct {
	Suggestions  []Suggestion `json:"suggestions"`
	ImprovedCode string       `json:"improved_code,omitempty"`
}

// HasImprovedCode 判断结果中是否带有改进后的完整代码。
func (r *ReviewResult) HasImprovedCode() bool {
	return r != nil && r.ImprovedCode != ""
}
