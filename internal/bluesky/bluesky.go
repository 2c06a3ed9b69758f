// Package bluesky publishes extracts to a Bluesky (AT Protocol) PDS.
//
// A session is opened with the account login and password, every image is
// sent to com.atproto.repo.uploadBlob and a single app.bsky.feed.post record
// embedding the blobs is created.
package bluesky

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/dghubble/sling"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/mikequentel/extractposter/internal/config"
	"github.com/mikequentel/extractposter/internal/fault"
	"github.com/mikequentel/extractposter/internal/model"
	"github.com/mikequentel/extractposter/internal/publish"
)

const (
	postCollection = "app.bsky.feed.post"
	imagesEmbed    = "app.bsky.embed.images"
	webBase        = "https://bsky.app"
)

type Publisher struct {
	cfg    config.BlueskyConfig
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

func New(cfg config.BlueskyConfig, client *http.Client, logger zerolog.Logger) *Publisher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultBlueskyBaseURL
	}
	return &Publisher{
		cfg:    cfg,
		client: client,
		logger: logger.With().Str("service", config.Bluesky).Logger(),
		now:    time.Now,
	}
}

func (p *Publisher) Name() string { return config.Bluesky }

func (p *Publisher) Publish(ctx context.Context, ex model.Extract) (*model.PostHandle, error) {
	base := sling.New().Base(strings.TrimRight(p.cfg.BaseURL, "/") + "/")

	sess, err := p.login(ctx, base)
	if err != nil {
		if publish.IsUnauthorized(err) {
			p.logger.Warn().Str("login", p.cfg.Login).Msg("login or app password rejected")
		}
		return nil, fault.New(fault.ErrAuthentication, "bluesky login as "+p.cfg.Login, err)
	}
	p.logger.Debug().Str("did", sess.DID).Str("handle", sess.Handle).Msg("session created")

	authed := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, p.client),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: sess.AccessJwt, TokenType: "Bearer"}),
	)
	authed.Timeout = p.client.Timeout

	images := make([]model.BskyImage, 0, ex.Len())
	for _, path := range ex.Paths() {
		m, err := publish.ReadMedia(path)
		if err != nil {
			return nil, err
		}
		blob, err := p.uploadBlob(ctx, authed, base, m)
		if err != nil {
			return nil, fault.New(fault.ErrUpload, "bluesky upload "+path, err)
		}
		p.logger.Debug().Str("file", path).Str("size", m.Size()).Str("mime", m.MIME).Str("blob", blob.Ref.Link).Msg("uploaded")
		images = append(images, model.BskyImage{Image: blob})
	}

	rec, err := p.createPost(ctx, authed, base, sess.DID, images)
	if err != nil {
		return nil, fault.New(fault.ErrPostCreation, "bluesky create post", err)
	}

	h := &model.PostHandle{
		Service: config.Bluesky,
		ID:      rec.CID,
		URI:     rec.URI,
		URL:     webURL(sess.Handle, rec.URI),
	}
	p.logger.Info().Strs("extract", ex.Paths()).Str("uri", h.URI).Msg("posted")
	return h, nil
}

func (p *Publisher) login(ctx context.Context, base *sling.Sling) (*model.BskySessionResp, error) {
	var sess model.BskySessionResp
	s := base.New().Post("com.atproto.server.createSession").BodyJSON(&model.BskySessionReq{
		Identifier: p.cfg.Login,
		Password:   p.cfg.Password,
	})
	if err := publish.Receive(ctx, p.client, s, "createSession", &sess); err != nil {
		return nil, err
	}
	if sess.AccessJwt == "" || sess.DID == "" {
		return nil, errors.New("createSession: session without access token or did")
	}
	return &sess, nil
}

func (p *Publisher) uploadBlob(ctx context.Context, client *http.Client, base *sling.Sling, m *publish.Media) (model.BskyBlob, error) {
	var out model.BskyUploadBlobResp
	s := base.New().Post("com.atproto.repo.uploadBlob").
		Body(bytes.NewReader(m.Data)).
		Set("Content-Type", m.MIME)
	if err := publish.Receive(ctx, client, s, "uploadBlob", &out); err != nil {
		return model.BskyBlob{}, err
	}
	if out.Blob.Ref.Link == "" {
		return model.BskyBlob{}, errors.New("uploadBlob: response without blob reference")
	}
	return out.Blob, nil
}

func (p *Publisher) createPost(ctx context.Context, client *http.Client, base *sling.Sling, did string, images []model.BskyImage) (*model.BskyCreateRecordResp, error) {
	post := model.BskyPost{
		Type:      postCollection,
		Text:      "",
		CreatedAt: p.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	if len(images) > 0 {
		post.Embed = &model.BskyImagesEmbed{Type: imagesEmbed, Images: images}
	}

	var out model.BskyCreateRecordResp
	s := base.New().Post("com.atproto.repo.createRecord").BodyJSON(&model.BskyCreateRecordReq{
		Repo:       did,
		Collection: postCollection,
		Record:     post,
	})
	if err := publish.Receive(ctx, client, s, "createRecord", &out); err != nil {
		return nil, err
	}
	if out.URI == "" {
		return nil, errors.New("createRecord: response without uri")
	}
	return &out, nil
}

// webURL maps at://<did>/app.bsky.feed.post/<rkey> to its bsky.app page.
func webURL(handle, uri string) string {
	parts := strings.Split(strings.TrimPrefix(uri, "at://"), "/")
	if len(parts) != 3 || parts[1] != postCollection {
		return ""
	}
	who := handle
	if who == "" {
		who = parts[0]
	}
	return webBase + "/profile/" + who + "/post/" + parts[2]
}
