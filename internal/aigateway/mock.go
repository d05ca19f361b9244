package aigateway

import (
	"fmt"
	"hash/fnv"
)

// Mock is a deterministic generator keyed on (purpose, user_prompt)
// (spec.md §4.6 "Determinism contract"). It never calls out to a real
// model; every test and CI run can exercise the full aigateway ->
// orchestrator path without network access.
type Mock struct{}

// NewMock returns a ready-to-use deterministic mock.
func NewMock() *Mock { return &Mock{} }

// Generate returns a structured fallback string. The content is a
// stable function of purpose and prompt only — no clock, no
// randomness — so the same call always produces the same text.
func (m *Mock) Generate(req Request) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(string(req.Purpose)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(req.UserPrompt))
	seed := h.Sum64()

	switch req.Purpose {
	case PurposeClassifier:
		return mockClassification(seed)
	case PurposeInterpreter:
		return mockInterpretation(seed, req.UserPrompt)
	case PurposeEvaluator:
		return fmt.Sprintf(`{"score":%d,"notes":"mock evaluation"}`, seed%101)
	default:
		return fmt.Sprintf("[mock:%s] %s", req.Purpose, truncate(req.UserPrompt, 160))
	}
}

func mockClassification(seed uint64) string {
	if seed%37 == 0 {
		return `{"injection_flagged":true,"confidence":0.3}`
	}
	return `{"injection_flagged":false,"confidence":0.92}`
}

func mockInterpretation(seed uint64, prompt string) string {
	return fmt.Sprintf(`{"effects":[{"kind":"narrative"}],"confidence":0.85,"source_hash":%d,"summary":%q}`,
		seed, truncate(prompt, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
