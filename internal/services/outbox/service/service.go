// Package service implements action execution and outcome classification
// for the outbox worker
package service

import (
	"context"
	"encoding/json"

	"stakegate/internal/adapters/backend"
	perr "stakegate/internal/platform/errors"
	"stakegate/internal/platform/validate"
	dom "stakegate/internal/services/outbox/domain"
)

// Svc executes one claimed action against GitHub and classifies the
// result. It is stateless; the worker owns the loop
type Svc struct {
	gh dom.Executor
}

// New constructs the execution service
func New(gh dom.Executor) *Svc {
	return &Svc{gh: gh}
}

// Execute validates, dispatches, and classifies a single action. It
// never returns an error: every path ends in a reportable outcome
func (s *Svc) Execute(ctx context.Context, a backend.BotAction) dom.Outcome {
	payload, err := decodePayload(a)
	if err != nil {
		return dom.Failed(dom.FailureInvalidPayload, err.Error())
	}

	switch a.ActionType {
	case backend.ActionUpsertPRComment:
		err = s.gh.UpsertIssueComment(ctx, a.InstallationID, a.RepoFullName, a.GitHubPRNumber,
			payload.CommentMarker, payload.CommentMarkdown)
	case backend.ActionClosePRWithComment:
		// close first, comment second; both idempotent so a crash in
		// between converges on retry
		err = s.gh.ClosePullRequest(ctx, a.InstallationID, a.RepoFullName, a.GitHubPRNumber)
		if err == nil {
			err = s.gh.UpsertIssueComment(ctx, a.InstallationID, a.RepoFullName, a.GitHubPRNumber,
				payload.CommentMarker, payload.CommentMarkdown)
		}
	default:
		return dom.Failed(dom.FailureUnsupportedAction, "unrecognized action type "+a.ActionType)
	}

	return classify(err)
}

func decodePayload(a backend.BotAction) (dom.ActionPayload, error) {
	var p dom.ActionPayload
	if a.InstallationID <= 0 {
		return p, perr.Validationf("installation_id must be positive")
	}
	if a.GitHubPRNumber <= 0 {
		return p, perr.Validationf("github_pr_number must be positive")
	}
	if len(a.Payload) == 0 {
		return p, perr.Validationf("payload is empty")
	}
	if err := json.Unmarshal(a.Payload, &p); err != nil {
		return p, perr.Wrapf(err, perr.ErrorCodeValidation, "payload is not valid JSON")
	}
	if err := validate.Struct(&p); err != nil {
		return p, err
	}
	return p, nil
}

// classify maps an execution error to its terminal outcome from the
// error's typed code, never from its text
func classify(err error) dom.Outcome {
	if err == nil {
		return dom.Succeeded()
	}
	switch perr.CodeOf(err) {
	case perr.ErrorCodeNotFound:
		return dom.Failed(dom.FailureInstallationNotFound, err.Error())
	case perr.ErrorCodeValidation, perr.ErrorCodeInvalidArgument:
		return dom.Failed(dom.FailureInvalidPayload, err.Error())
	case perr.ErrorCodeUnsupported:
		return dom.Failed(dom.FailureUnsupportedAction, err.Error())
	default:
		return dom.Retryable(err.Error())
	}
}
