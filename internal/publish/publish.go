// Package publish holds what the service adapters share: the Publisher
// contract, the HTTP client, response diagnostics and media loading.
package publish

import (
	"context"

	"github.com/mikequentel/extractposter/internal/model"
)

// Publisher posts one extract to one service.
//
// Publish authenticates, uploads every file of the extract in order and then
// creates exactly one post with empty text carrying all uploads. Errors are of
// kind fault.ErrAuthentication, fault.ErrUpload or fault.ErrPostCreation. A
// failed upload means no post is created; media already uploaded stay on the
// remote side.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, ex model.Extract) (*model.PostHandle, error)
}
