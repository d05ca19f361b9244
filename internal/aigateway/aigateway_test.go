package aigateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMockIsDeterministic(t *testing.T) {
	g := New()
	req := Request{Purpose: PurposeCommentary, UserPrompt: "Team A beat Team B 90-85"}

	r1, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	r2, err := g.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, r1.Text, r2.Text)
	assert.True(t, r1.Usage.UsedMock)
}

func TestGenerateMockVariesByPromptAndPurpose(t *testing.T) {
	g := New()
	a, err := g.Generate(context.Background(), Request{Purpose: PurposeCommentary, UserPrompt: "game 1"})
	require.NoError(t, err)
	b, err := g.Generate(context.Background(), Request{Purpose: PurposeCommentary, UserPrompt: "game 2"})
	require.NoError(t, err)
	c, err := g.Generate(context.Background(), Request{Purpose: PurposeReportSim, UserPrompt: "game 1"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Text, b.Text)
	assert.NotEqual(t, a.Text, c.Text)
}

type stubProvider struct {
	calls int
	fail  func(call int) error
}

func (s *stubProvider) Invoke(ctx context.Context, req Request) (string, string, int, int, error) {
	s.calls++
	if s.fail != nil {
		if err := s.fail(s.calls); err != nil {
			return "", "", 0, 0, err
		}
	}
	return "live response", "test-model", 10, 20, nil
}

func TestGenerateUsesProviderWhenEnabled(t *testing.T) {
	p := &stubProvider{}
	g := New(WithProvider(p), WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	resp, err := g.Generate(context.Background(), Request{Purpose: PurposeReportGov, UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "live response", resp.Text)
	assert.False(t, resp.Usage.UsedMock)
	assert.Equal(t, 1, p.calls)
}

func TestGenerateDisabledFallsBackToMockEvenWithProvider(t *testing.T) {
	p := &stubProvider{}
	g := New(WithProvider(p), WithDisabled(true))

	resp, err := g.Generate(context.Background(), Request{Purpose: PurposeReportGov, UserPrompt: "x"})
	require.NoError(t, err)
	assert.True(t, resp.Usage.UsedMock)
	assert.Equal(t, 0, p.calls)
}

func TestGenerateRetriesTransientThenSucceeds(t *testing.T) {
	p := &stubProvider{fail: func(call int) error {
		if call < 3 {
			return Transient(errors.New("temporary glitch"))
		}
		return nil
	}}
	g := New(WithProvider(p), WithRetryPolicy(RetryPolicy{MaxAttempts: 3}))

	resp, err := g.Generate(context.Background(), Request{Purpose: PurposeReportGov, UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "live response", resp.Text)
	assert.Equal(t, 3, p.calls)
}

func TestGeneratePermanentFailureDoesNotRetry(t *testing.T) {
	p := &stubProvider{fail: func(call int) error {
		return errors.New("bad request")
	}}
	g := New(WithProvider(p), WithRetryPolicy(RetryPolicy{MaxAttempts: 3}))

	_, err := g.Generate(context.Background(), Request{Purpose: PurposeReportGov, UserPrompt: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

type recordingSink struct {
	records []UsageRecord
}

func (s *recordingSink) Record(ctx context.Context, rec UsageRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func TestGenerateRecordsUsage(t *testing.T) {
	sink := &recordingSink{}
	g := New(WithUsageSink(sink))

	_, err := g.Generate(context.Background(), Request{Purpose: PurposeInterpreter, UserPrompt: "x"})
	require.NoError(t, err)
	require.Len(t, sink.records, 1)
	assert.Equal(t, PurposeInterpreter, sink.records[0].Purpose)
}
