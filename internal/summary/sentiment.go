package summary

import "strings"

// ReframePrefix is the fixed reframing clause prepended to net-negative
// summaries before they are persisted.
const ReframePrefix = "虽然今天有些挑战，但我相信一切都会好起来的。"

// Analyzer computes a scalar sentiment polarity for a text by counting
// lexicon hits. The score is in [-1, 1]: below zero means net-negative.
// Scoring is fully deterministic; no model call is involved.
type Analyzer struct {
	positive []string
	negative []string
}

// NewAnalyzer returns an analyzer with the built-in diary lexicon.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		positive: []string{
			"开心", "高兴", "快乐", "顺利", "进步", "满意", "喜欢", "幸福",
			"放松", "感谢", "期待", "美好", "充实", "温暖",
			"happy", "glad", "great", "good", "progress", "calm", "grateful",
			"enjoy", "love", "relaxed",
		},
		negative: []string{
			"难过", "伤心", "焦虑", "压力", "疲惫", "失败", "担心", "生气",
			"烦恼", "沮丧", "糟糕", "孤独", "痛苦", "失望",
			"sad", "anxious", "stress", "tired", "fail", "angry", "worried",
			"bad", "lonely", "upset",
		},
	}
}

// Score counts lexicon occurrences and returns (pos-neg)/(pos+neg).
// A text with no lexicon hits scores 0.
func (a *Analyzer) Score(text string) float64 {
	lower := strings.ToLower(text)

	var pos, neg int
	for _, term := range a.positive {
		pos += strings.Count(lower, term)
	}
	for _, term := range a.negative {
		neg += strings.Count(lower, term)
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}
