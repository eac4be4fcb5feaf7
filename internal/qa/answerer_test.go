package qa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"docquorum/internal/providers"
	"docquorum/internal/tokens"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls [][]providers.Message
	reply func(prompt string) (string, error)
}

func (r *recorder) Complete(_ context.Context, _ string, messages []providers.Message) (string, error) {
	r.calls = append(r.calls, messages)
	return r.reply(providers.LastUserContent(messages))
}

func TestAnswerShortContextSkipsDistill(t *testing.T) {
	rec := &recorder{reply: func(string) (string, error) { return " 42 ", nil }}
	res := New(rec).Answer(context.Background(), Request{Question: "What is the answer?", Context: "The answer is 42.", Section: "Intro", ModelID: "m"})

	require.True(t, res.OK())
	require.False(t, res.Distilled)
	require.Equal(t, "42", res.Text)
	require.Len(t, rec.calls, 1)
	require.Equal(t, providers.RoleSystem, rec.calls[0][0].Role)
	user := rec.calls[0][1].Content
	require.Contains(t, user, NotFound("Intro"))
	require.Contains(t, user, "QUESTION: What is the answer?")
}

func TestAnswerDistillsLongContext(t *testing.T) {
	long := strings.Repeat("w", 20000)
	rec := &recorder{reply: func(p string) (string, error) {
		if strings.HasPrefix(p, "From the following text") {
			return "distilled facts", nil
		}
		return "answer", nil
	}}
	a := New(rec)
	a.Estimator = tokens.Fixed(4001)
	res := a.Answer(context.Background(), Request{Question: "q", Context: long, Section: "Ch 2", ModelID: "m"})

	require.True(t, res.OK())
	require.True(t, res.Distilled)
	require.Len(t, rec.calls, 2)
	distill := rec.calls[0][0].Content
	require.True(t, strings.HasSuffix(distill, "TEXT:\n"+strings.Repeat("w", DefaultDistillChars)))
	require.Contains(t, rec.calls[1][1].Content, "distilled facts")
	require.Less(t, utf8.RuneCountInString(distill), 20000)
}

func TestAnswerDistillFailureIsTagged(t *testing.T) {
	rec := &recorder{reply: func(string) (string, error) { return "", errors.New("429 rate limit") }}
	a := New(rec)
	a.Estimator = tokens.Fixed(9000)
	res := a.Answer(context.Background(), Request{Question: "q", Context: "ctx", Section: "S", ModelID: "m"})
	require.False(t, res.OK())
	require.Equal(t, string(providers.KindRateLimited), res.ErrorKind)
	require.Len(t, rec.calls, 1)
}

func TestAnswerAtLimitDoesNotDistill(t *testing.T) {
	rec := &recorder{reply: func(string) (string, error) { return "ok", nil }}
	a := New(rec)
	a.Estimator = tokens.Fixed(DefaultDistillTokenLimit)
	res := a.Answer(context.Background(), Request{Question: "q", Context: "ctx", ModelID: "m"})
	require.True(t, res.OK())
	require.False(t, res.Distilled)
	require.Len(t, rec.calls, 1)
}
