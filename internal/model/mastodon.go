package model

// --- GET /api/v1/accounts/verify_credentials ---

type MastodonAccount struct {
	ID   string `json:"id"`
	Acct string `json:"acct"`
	URL  string `json:"url"`
}

// --- POST /api/v2/media ---

type MastodonMediaResp struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"` // null while the server is still processing
}

// --- POST /api/v1/statuses ---

type MastodonStatusReq struct {
	Status   string   `json:"status"`
	MediaIDs []string `json:"media_ids"`
}
type MastodonStatusResp struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
	URL string `json:"url"`
}
