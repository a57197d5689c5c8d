package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	perr "stakegate/internal/platform/errors"
)

const (
	commentsPerPage = 100
	reposPerPage    = 100
	reposMaxPages   = 10
)

// InstallationToken mints an installation access token. When the mint
// 404s and repoFullNameHint is set, the current installation id for that
// repository is looked up (installations can be deleted and recreated,
// invalidating previously-known ids) and the mint is retried against it.
// If the recovery path cannot produce a token the original 404 surfaces
func (c *Client) InstallationToken(ctx context.Context, installationID int64, repoFullNameHint string) (string, error) {
	jwt, err := c.appJWT()
	if err != nil {
		return "", err
	}

	tok, mintErr := c.mintToken(ctx, jwt, installationID)
	if mintErr == nil {
		return tok, nil
	}
	if !perr.IsCode(mintErr, perr.ErrorCodeNotFound) || repoFullNameHint == "" {
		return "", mintErr
	}

	recovered, lookupErr := c.RepoInstallationID(ctx, repoFullNameHint)
	if lookupErr != nil || recovered == 0 {
		return "", mintErr
	}
	c.log.Info().Int64("stale_id", installationID).Int64("recovered_id", recovered).
		Str("repo", repoFullNameHint).Msg("recovered installation id")

	tok, err = c.mintToken(ctx, jwt, recovered)
	if err != nil {
		return "", mintErr
	}
	return tok, nil
}

func (c *Client) mintToken(ctx context.Context, jwt string, installationID int64) (string, error) {
	path := fmt.Sprintf("/app/installations/%d/access_tokens", installationID)
	resp, err := c.do(ctx, http.MethodPost, path, jwt, nil)
	if err != nil {
		return "", err
	}
	var out tokenResponse
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", perr.Newf(perr.ErrorCodeUnknown, "empty installation token for %d", installationID)
	}
	return out.Token, nil
}

// RepoInstallationID resolves the installation currently owning a repo
// using App JWT auth
func (c *Client) RepoInstallationID(ctx context.Context, repoFullName string) (int64, error) {
	jwt, err := c.appJWT()
	if err != nil {
		return 0, err
	}
	resp, err := c.do(ctx, http.MethodGet, "/repos/"+repoFullName+"/installation", jwt, nil)
	if err != nil {
		return 0, err
	}
	var out repoInstallation
	if err := decode(resp, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// UpsertIssueComment converges on exactly one comment carrying marker:
// the newest 100 comments are scanned for the marker substring, a hit is
// patched in place, otherwise a new comment is posted. Repeated calls
// with the same marker therefore update rather than duplicate
func (c *Client) UpsertIssueComment(
	ctx context.Context, installationID int64, repoFullName string, issueNumber int, marker, markdown string,
) error {
	token, err := c.InstallationToken(ctx, installationID, repoFullName)
	if err != nil {
		return err
	}

	listPath := fmt.Sprintf("/repos/%s/issues/%d/comments?per_page=%d", repoFullName, issueNumber, commentsPerPage)
	resp, err := c.do(ctx, http.MethodGet, listPath, token, nil)
	if err != nil {
		return err
	}
	var comments []issueComment
	if err := decode(resp, &comments); err != nil {
		return err
	}

	body := map[string]string{"body": markdown + "\n\n" + marker}
	for _, cm := range comments {
		if strings.Contains(cm.Body, marker) {
			patchPath := fmt.Sprintf("/repos/%s/issues/comments/%d", repoFullName, cm.ID)
			resp, err := c.do(ctx, http.MethodPatch, patchPath, token, body)
			if err != nil {
				return err
			}
			return decode(resp, nil)
		}
	}

	postPath := fmt.Sprintf("/repos/%s/issues/%d/comments", repoFullName, issueNumber)
	resp, err = c.do(ctx, http.MethodPost, postPath, token, body)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// ClosePullRequest patches the PR state to closed. GitHub treats closing
// an already-closed PR as a no-op, so this is safe to repeat
func (c *Client) ClosePullRequest(ctx context.Context, installationID int64, repoFullName string, prNumber int) error {
	token, err := c.InstallationToken(ctx, installationID, repoFullName)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/repos/%s/pulls/%d", repoFullName, prNumber)
	resp, err := c.do(ctx, http.MethodPatch, path, token, map[string]string{"state": "closed"})
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// ListInstallationRepositories pages through the installation's repos at
// 100 per page, capped at 10 pages. Installations beyond 1,000 repos are
// not fully enumerated; accepted limitation
func (c *Client) ListInstallationRepositories(ctx context.Context, installationID int64) ([]Repository, error) {
	token, err := c.InstallationToken(ctx, installationID, "")
	if err != nil {
		return nil, err
	}

	var all []Repository
	for page := 1; page <= reposMaxPages; page++ {
		path := fmt.Sprintf("/installation/repositories?per_page=%d&page=%d", reposPerPage, page)
		resp, err := c.do(ctx, http.MethodGet, path, token, nil)
		if err != nil {
			return nil, err
		}
		var out installationRepos
		if err := decode(resp, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Repositories...)
		if len(out.Repositories) < reposPerPage {
			break
		}
	}
	return all, nil
}
