// Package twitter publishes extracts to X/Twitter over the v1.1 API with
// OAuth1 user credentials.
package twitter

import (
	"context"
	"net/http"
	"strconv"

	"emperror.dev/errors"
	gotwitter "github.com/dghubble/go-twitter/twitter"
	"github.com/dghubble/oauth1"
	"github.com/dghubble/sling"
	"github.com/rs/zerolog"

	"github.com/mikequentel/extractposter/internal/config"
	"github.com/mikequentel/extractposter/internal/fault"
	"github.com/mikequentel/extractposter/internal/model"
	"github.com/mikequentel/extractposter/internal/publish"
)

const (
	DefaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	webBase          = "https://twitter.com"
)

type Publisher struct {
	cfg       config.TwitterConfig
	client    *http.Client
	logger    zerolog.Logger
	uploadURL string
}

func New(cfg config.TwitterConfig, client *http.Client, logger zerolog.Logger) *Publisher {
	return &Publisher{
		cfg:       cfg,
		client:    client,
		logger:    logger.With().Str("service", config.Twitter).Logger(),
		uploadURL: DefaultUploadURL,
	}
}

func (p *Publisher) Name() string { return config.Twitter }

// signedClient wraps the base client's transport with OAuth1 signing.
func (p *Publisher) signedClient(ctx context.Context) *http.Client {
	oc := oauth1.NewConfig(p.cfg.ConsumerKey, p.cfg.ConsumerSecret)
	token := oauth1.NewToken(p.cfg.AccessToken, p.cfg.AccessSecret)
	c := oc.Client(context.WithValue(ctx, oauth1.HTTPClient, p.client), token)
	c.Timeout = p.client.Timeout
	return c
}

// Publish uploads the media, then tweets them. go-twitter requests carry no
// context, so cancellation is checked between steps.
func (p *Publisher) Publish(ctx context.Context, ex model.Extract) (*model.PostHandle, error) {
	signed := p.signedClient(ctx)
	api := gotwitter.NewClient(signed)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "twitter publish")
	}
	user, resp, err := api.Accounts.VerifyCredentials(&gotwitter.AccountVerifyParams{
		SkipStatus:      gotwitter.Bool(true),
		IncludeEntities: gotwitter.Bool(false),
	})
	if err := apiError("verify_credentials", resp, err); err != nil {
		if publish.IsUnauthorized(err) {
			p.logger.Warn().Msg("consumer or access credentials rejected")
		}
		return nil, fault.New(fault.ErrAuthentication, "twitter verify credentials", err)
	}
	p.logger.Debug().Str("screen_name", user.ScreenName).Msg("credentials verified")

	ids := make([]int64, 0, ex.Len())
	for _, path := range ex.Paths() {
		m, err := publish.ReadMedia(path)
		if err != nil {
			return nil, err
		}
		id, err := p.upload(ctx, signed, m)
		if err != nil {
			return nil, fault.New(fault.ErrUpload, "twitter upload "+path, err)
		}
		p.logger.Debug().Str("file", path).Str("size", m.Size()).Str("mime", m.MIME).Int64("media_id", id).Msg("uploaded")
		ids = append(ids, id)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "twitter publish")
	}
	tweet, resp, err := api.Statuses.Update("", &gotwitter.StatusUpdateParams{MediaIds: ids})
	if err := apiError("statuses/update", resp, err); err != nil {
		return nil, fault.New(fault.ErrPostCreation, "twitter create tweet", err)
	}
	if tweet == nil || tweet.IDStr == "" {
		return nil, fault.New(fault.ErrPostCreation, "twitter create tweet", errors.New("statuses/update: response without id"))
	}

	h := &model.PostHandle{
		Service: config.Twitter,
		ID:      tweet.IDStr,
		URL:     webBase + "/" + user.ScreenName + "/status/" + tweet.IDStr,
	}
	p.logger.Info().Strs("extract", ex.Paths()).Str("url", h.URL).Msg("posted")
	return h, nil
}

// upload sends one file with the simple (non-chunked) media/upload call.
func (p *Publisher) upload(ctx context.Context, client *http.Client, m *publish.Media) (int64, error) {
	body, contentType, err := m.Multipart("media")
	if err != nil {
		return 0, errors.Wrap(err, "media/upload: cannot encode upload")
	}
	var out model.MediaUploadResp
	s := sling.New().Post(p.uploadURL).Body(body).Set("Content-Type", contentType)
	if err := publish.Receive(ctx, client, s, "media/upload", &out); err != nil {
		return 0, err
	}
	if out.MediaIDString != "" {
		id, err := strconv.ParseInt(out.MediaIDString, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "media/upload: bad media_id_string %q", out.MediaIDString)
		}
		return id, nil
	}
	if out.MediaID != 0 {
		return out.MediaID, nil
	}
	return 0, errors.New("media/upload: missing media_id in response")
}

// apiError folds go-twitter's (response, error) pair into one error. An error
// status with an undecodable body still counts as a failure.
func apiError(endpoint string, resp *http.Response, err error) error {
	if resp != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		msg := http.StatusText(resp.StatusCode)
		var apiErr gotwitter.APIError
		if errors.As(err, &apiErr) && !apiErr.Empty() {
			msg = apiErr.Error()
		}
		return errors.WithStack(&publish.HTTPError{StatusCode: resp.StatusCode, Endpoint: endpoint, Message: msg})
	}
	if err != nil {
		return errors.Wrap(err, endpoint)
	}
	return nil
}
