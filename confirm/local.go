package confirm

import (
	"context"
	"strings"
)

type LocalJudge struct {
	ConfirmKeywords []string
	DenyKeywords    []string
}

var _ Judge = (*LocalJudge)(nil)

func NewLocalJudge() *LocalJudge {
	return &LocalJudge{
		ConfirmKeywords: []string{"yes", "y", "confirm", "confirmed", "go ahead", "proceed", "run it", "ok", "sim", "confirmo"},
		DenyKeywords:    []string{"no", "n", "cancel", "stop", "deny", "abort", "não", "nao"},
	}
}

// Judge matches the whole normalized message against the keyword lists.
func (j *LocalJudge) Judge(ctx context.Context, req *Request) (Judgment, error) {
	normalized := strings.ToLower(strings.TrimSpace(req.Utterance))
	normalized = strings.TrimRight(normalized, ".!")
	for _, keyword := range j.ConfirmKeywords {
		if normalized == keyword {
			return Confirmed, nil
		}
	}
	for _, keyword := range j.DenyKeywords {
		if normalized == keyword {
			return Denied, nil
		}
	}
	return Ambiguous, nil
}

// FailbackJudge returns the first verdict obtained without error.
type FailbackJudge struct {
	judges []Judge
}

var _ Judge = (*FailbackJudge)(nil)

func NewFailbackJudge(judges ...Judge) *FailbackJudge {
	return &FailbackJudge{judges: judges}
}

func (j *FailbackJudge) Judge(ctx context.Context, req *Request) (Judgment, error) {
	var lastErr error
	for _, judge := range j.judges {
		res, err := judge.Judge(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return Ambiguous, lastErr
}
