package github

// Repository is the slice of the GitHub repository document the bot needs
type Repository struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

// issueComment is one comment on an issue/PR thread
type issueComment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

// tokenResponse is the installation access token mint response
type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// repoInstallation is the GET /repos/{owner}/{repo}/installation response
type repoInstallation struct {
	ID int64 `json:"id"`
}

// installationRepos is one page of GET /installation/repositories
type installationRepos struct {
	TotalCount   int          `json:"total_count"`
	Repositories []Repository `json:"repositories"`
}
