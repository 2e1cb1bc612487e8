package capability

import (
	"context"

	"github.com/go-while/nntpd/internal/domain"
)

// IdentityService owns authentication token lifecycle, message-id
// synthesis, and the local host identifier.
type IdentityService interface {
	Authenticate(ctx context.Context, subject, credentials string) (token string, ok bool, err error)
	IsValid(ctx context.Context, token string) (bool, error)
	// HostIdentifier returns a stable opaque string unique across this
	// host's peers and immutable for the host's lifetime.
	HostIdentifier(ctx context.Context) (string, error)
	CreateMessageID(ctx context.Context, headers *domain.ArticleHeaders) (domain.MessageId, error)
}
