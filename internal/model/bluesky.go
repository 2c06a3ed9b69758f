package model

// --- com.atproto.server.createSession ---

type BskySessionReq struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}
type BskySessionResp struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	DID        string `json:"did"`
}

// --- com.atproto.repo.uploadBlob ---

type BskyBlob struct {
	Type string `json:"$type"`
	Ref  struct {
		Link string `json:"$link"`
	} `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}
type BskyUploadBlobResp struct {
	Blob BskyBlob `json:"blob"`
}

// --- com.atproto.repo.createRecord (app.bsky.feed.post) ---

type BskyImage struct {
	Alt   string   `json:"alt"`
	Image BskyBlob `json:"image"`
}
type BskyImagesEmbed struct {
	Type   string      `json:"$type"` // app.bsky.embed.images
	Images []BskyImage `json:"images"`
}
type BskyPost struct {
	Type      string           `json:"$type"` // app.bsky.feed.post
	Text      string           `json:"text"`
	CreatedAt string           `json:"createdAt"`
	Embed     *BskyImagesEmbed `json:"embed,omitempty"`
}
type BskyCreateRecordReq struct {
	Repo       string   `json:"repo"`
	Collection string   `json:"collection"`
	Record     BskyPost `json:"record"`
}
type BskyCreateRecordResp struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}
