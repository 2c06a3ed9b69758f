// Package mastodon publishes extracts to a Mastodon instance with an
// application access token.
package mastodon

import (
	"context"
	"net/http"
	"strings"

	"emperror.dev/errors"
	"github.com/dghubble/sling"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/mikequentel/extractposter/internal/config"
	"github.com/mikequentel/extractposter/internal/fault"
	"github.com/mikequentel/extractposter/internal/model"
	"github.com/mikequentel/extractposter/internal/publish"
)

type Publisher struct {
	cfg    config.MastodonConfig
	client *http.Client
	logger zerolog.Logger

	// newKey makes the Idempotency-Key of the status request.
	newKey func() string
}

func New(cfg config.MastodonConfig, client *http.Client, logger zerolog.Logger) *Publisher {
	return &Publisher{
		cfg:    cfg,
		client: client,
		logger: logger.With().Str("service", config.Mastodon).Logger(),
		newKey: uuid.NewString,
	}
}

func (p *Publisher) Name() string { return config.Mastodon }

func (p *Publisher) Publish(ctx context.Context, ex model.Extract) (*model.PostHandle, error) {
	base := sling.New().Base(strings.TrimRight(p.cfg.BaseURL, "/") + "/")
	authed := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, p.client),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.cfg.AccessToken, TokenType: "Bearer"}),
	)
	authed.Timeout = p.client.Timeout

	var acct model.MastodonAccount
	if err := publish.Receive(ctx, authed, base.New().Get("api/v1/accounts/verify_credentials"), "verify_credentials", &acct); err != nil {
		if publish.IsUnauthorized(err) {
			p.logger.Warn().Str("base_url", p.cfg.BaseURL).Msg("access token rejected")
		}
		return nil, fault.New(fault.ErrAuthentication, "mastodon verify credentials at "+p.cfg.BaseURL, err)
	}
	p.logger.Debug().Str("acct", acct.Acct).Msg("credentials verified")

	ids := make([]string, 0, ex.Len())
	for _, path := range ex.Paths() {
		m, err := publish.ReadMedia(path)
		if err != nil {
			return nil, err
		}
		id, err := p.upload(ctx, authed, base, m)
		if err != nil {
			return nil, fault.New(fault.ErrUpload, "mastodon upload "+path, err)
		}
		p.logger.Debug().Str("file", path).Str("size", m.Size()).Str("mime", m.MIME).Str("media_id", id).Msg("uploaded")
		ids = append(ids, id)
	}

	var status model.MastodonStatusResp
	s := base.New().Post("api/v1/statuses").
		Set("Idempotency-Key", p.newKey()).
		BodyJSON(&model.MastodonStatusReq{Status: "", MediaIDs: ids})
	if err := publish.Receive(ctx, authed, s, "statuses", &status); err != nil {
		return nil, fault.New(fault.ErrPostCreation, "mastodon create status", err)
	}
	if status.ID == "" {
		return nil, fault.New(fault.ErrPostCreation, "mastodon create status", errors.New("statuses: response without id"))
	}

	h := &model.PostHandle{
		Service: config.Mastodon,
		ID:      status.ID,
		URI:     status.URI,
		URL:     status.URL,
	}
	p.logger.Info().Strs("extract", ex.Paths()).Str("url", h.String()).Msg("posted")
	return h, nil
}

// upload sends one file to /api/v2/media. The server answers 202 while it is
// still processing; the id is usable for a status either way.
func (p *Publisher) upload(ctx context.Context, client *http.Client, base *sling.Sling, m *publish.Media) (string, error) {
	body, contentType, err := m.Multipart("file")
	if err != nil {
		return "", errors.Wrap(err, "media: cannot encode upload")
	}
	var out model.MastodonMediaResp
	s := base.New().Post("api/v2/media").Body(body).Set("Content-Type", contentType)
	if err := publish.Receive(ctx, client, s, "media", &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("media: response without id")
	}
	return out.ID, nil
}
