package twitter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"emperror.dev/errors"
	"github.com/go-test/deep"
	"github.com/rs/zerolog"

	"github.com/mikequentel/extractposter/internal/config"
	"github.com/mikequentel/extractposter/internal/fault"
	"github.com/mikequentel/extractposter/internal/model"
	"github.com/mikequentel/extractposter/internal/publish"
)

// rewriteTransport redirects all HTTP requests to a local httptest server,
// so the hardcoded api.twitter.com and upload.twitter.com hosts can be tested.
type rewriteTransport struct {
	base   http.RoundTripper
	target string // e.g., "http://127.0.0.1:PORT"
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(rt.target, "http://")
	return rt.base.RoundTrip(req)
}

type fakeAPI struct {
	badAuth    bool
	uploadResp []string // raw bodies for successive uploads, "" = 500
	updateCode int

	hosts    []string
	uploads  int
	mediaIDs string
	unsigned bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.hosts = append(f.hosts, r.Host)
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			f.unsigned = true
		}
		switch r.URL.Path {
		case "/1.1/account/verify_credentials.json":
			if f.badAuth {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"errors":[{"code":89,"message":"Invalid or expired token."}]}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":1,"id_str":"1","screen_name":"poster"}`))
		case "/1.1/media/upload.json":
			if _, _, err := r.FormFile("media"); err != nil {
				t.Errorf("upload without media part: %v", err)
			}
			body := ""
			if f.uploads < len(f.uploadResp) {
				body = f.uploadResp[f.uploads]
			}
			f.uploads++
			if body == "" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		case "/1.1/statuses/update.json":
			r.ParseForm()
			f.mediaIDs = r.PostForm.Get("media_ids")
			w.Header().Set("Content-Type", "application/json")
			if f.updateCode != 0 {
				w.WriteHeader(f.updateCode)
				w.Write([]byte(`{"errors":[{"code":324,"message":"The validation of media ids failed."}]}`))
				return
			}
			w.Write([]byte(`{"id":1790000000000000001,"id_str":"1790000000000000001","text":""}`))
		default:
			http.NotFound(w, r)
		}
	})
	return mux
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var out []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("data-"+n), 0o644); err != nil {
			t.Fatal(err)
		}
		out = append(out, p)
	}
	return out
}

func newPublisher(srv *httptest.Server) *Publisher {
	client := &http.Client{
		Transport: rewriteTransport{base: http.DefaultTransport, target: srv.URL},
	}
	cfg := config.TwitterConfig{ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessSecret: "as"}
	return New(cfg, client, zerolog.Nop())
}

func TestPublish_Success(t *testing.T) {
	f := &fakeAPI{uploadResp: []string{
		`{"media_id":111,"media_id_string":"111"}`,
		`{"media_id":222}`,
	}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	h, err := newPublisher(srv).Publish(context.Background(), model.NewExtract(writeFiles(t, "a.jpg", "b.png")...))
	if err != nil {
		t.Fatal(err)
	}
	want := &model.PostHandle{
		Service: "twitter",
		ID:      "1790000000000000001",
		URL:     "https://twitter.com/poster/status/1790000000000000001",
	}
	if diff := deep.Equal(h, want); diff != nil {
		t.Error(diff)
	}
	if f.mediaIDs != "111,222" {
		t.Errorf("media_ids = %q, want 111,222", f.mediaIDs)
	}
	if f.unsigned {
		t.Error("every request must carry an OAuth1 signature")
	}

	var sawUpload, sawAPI bool
	for _, host := range f.hosts {
		sawUpload = sawUpload || host == "upload.twitter.com"
		sawAPI = sawAPI || host == "api.twitter.com"
	}
	if !sawUpload || !sawAPI {
		t.Errorf("expected calls to both upload and api hosts, got %v", f.hosts)
	}
}

func TestPublish_BadCredentials(t *testing.T) {
	f := &fakeAPI{badAuth: true}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	var logs bytes.Buffer
	p := newPublisher(srv)
	p.logger = zerolog.New(&logs)
	_, err := p.Publish(context.Background(), model.NewExtract(writeFiles(t, "a.jpg")...))
	if !errors.Is(err, fault.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if !publish.IsUnauthorized(err) {
		t.Errorf("expected a 401 to be visible in %v", err)
	}
	if !strings.Contains(logs.String(), "credentials rejected") {
		t.Errorf("expected a rejected credentials warning, logs: %s", logs.String())
	}
	if !strings.Contains(err.Error(), "Invalid or expired token") {
		t.Errorf("server message lost: %v", err)
	}
	if f.uploads != 0 {
		t.Errorf("no uploads expected, got %d", f.uploads)
	}
}

func TestPublish_UploadFails(t *testing.T) {
	f := &fakeAPI{uploadResp: []string{`{"media_id_string":"1"}`, `{"media_id_string":"2"}`, ""}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	_, err := newPublisher(srv).Publish(context.Background(), model.NewExtract(writeFiles(t, "1.jpg", "2.jpg", "3.jpg")...))
	if !errors.Is(err, fault.ErrUpload) {
		t.Fatalf("expected ErrUpload, got %v", err)
	}
	if f.uploads != 3 {
		t.Errorf("expected 3 upload attempts, got %d", f.uploads)
	}
	if f.mediaIDs != "" {
		t.Error("no tweet may be created after a failed upload")
	}
}

func TestPublish_MissingMediaID(t *testing.T) {
	f := &fakeAPI{uploadResp: []string{`{}`}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	_, err := newPublisher(srv).Publish(context.Background(), model.NewExtract(writeFiles(t, "a.jpg")...))
	if !errors.Is(err, fault.ErrUpload) {
		t.Fatalf("expected ErrUpload, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing media_id") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPublish_UpdateRejected(t *testing.T) {
	f := &fakeAPI{uploadResp: []string{`{"media_id_string":"1"}`}, updateCode: http.StatusBadRequest}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	_, err := newPublisher(srv).Publish(context.Background(), model.NewExtract(writeFiles(t, "a.jpg")...))
	if !errors.Is(err, fault.ErrPostCreation) {
		t.Fatalf("expected ErrPostCreation, got %v", err)
	}
	if !strings.Contains(err.Error(), "324") {
		t.Errorf("twitter error code lost: %v", err)
	}
}

func TestPublish_Cancelled(t *testing.T) {
	f := &fakeAPI{}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newPublisher(srv).Publish(ctx, model.NewExtract(writeFiles(t, "a.jpg")...))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, fault.ErrAuthentication) || fault.KindOf(err) != nil {
		t.Errorf("cancellation must not carry a failure kind, got %v", err)
	}
	if len(f.hosts) != 0 {
		t.Errorf("no request expected after cancellation, got %v", f.hosts)
	}
}

func TestAPIError(t *testing.T) {
	if err := apiError("x", &http.Response{StatusCode: 200}, nil); err != nil {
		t.Errorf("2xx without error should be nil, got %v", err)
	}
	err := apiError("x", &http.Response{StatusCode: 503}, io.ErrUnexpectedEOF)
	var he *publish.HTTPError
	if !errors.As(err, &he) || he.StatusCode != 503 || he.Message != "Service Unavailable" {
		t.Errorf("unexpected %v", err)
	}
	if err := apiError("x", nil, io.EOF); !errors.Is(err, io.EOF) {
		t.Errorf("transport error must be kept, got %v", err)
	}
}
