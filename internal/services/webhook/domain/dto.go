package domain

// Raw webhook payload shapes, one per recognized event kind. Only the
// fields the pipeline forwards are decoded; validation tags enforce the
// required-fields contract at the deserialization boundary

// RepoRef mirrors the repository object inside webhook payloads
type RepoRef struct {
	ID       int64  `json:"id" validate:"required,gt=0"`
	FullName string `json:"full_name" validate:"required"`
}

// PullRequestPayload is the decoded pull_request event body
type PullRequestPayload struct {
	Action       string `json:"action" validate:"required"`
	Installation struct {
		ID int64 `json:"id" validate:"required,gt=0"`
	} `json:"installation"`
	Repository  RepoRef `json:"repository"`
	PullRequest struct {
		Number  int    `json:"number" validate:"required,gt=0"`
		ID      int64  `json:"id" validate:"required,gt=0"`
		HTMLURL string `json:"html_url"`
		Draft   bool   `json:"draft"`
		User    struct {
			ID    int64  `json:"id"`
			Login string `json:"login"`
		} `json:"user"`
		Head struct {
			SHA string `json:"sha" validate:"required"`
		} `json:"head"`
	} `json:"pull_request"`
}

// InstallationPayload is the decoded installation and
// installation_repositories event body; the two kinds share a shape and
// differ only in which repository lists are populated
type InstallationPayload struct {
	Action       string `json:"action" validate:"required"`
	Installation struct {
		ID      int64 `json:"id" validate:"required,gt=0"`
		Account struct {
			Login string `json:"login"`
			Type  string `json:"type"`
		} `json:"account"`
	} `json:"installation"`
	Repositories        []RepoRef `json:"repositories"`
	RepositoriesAdded   []RepoRef `json:"repositories_added"`
	RepositoriesRemoved []RepoRef `json:"repositories_removed"`
}
