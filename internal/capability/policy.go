package capability

import (
	"context"

	"github.com/go-while/nntpd/internal/domain"
)

// PolicyService makes admission decisions for posting, IHAVE transfer,
// new-group advertisement, and per-article acceptance.
type PolicyService interface {
	IsPostingAllowed(ctx context.Context, submitter string) (bool, error)
	IsIHaveTransferAllowed(ctx context.Context, submitter string) (bool, error)
	IsNewsgroupAllowed(ctx context.Context, name domain.NewsgroupName, mode domain.PostingMode, estNumArticles int64, advertiser string) (bool, error)
	IsArticleAllowed(ctx context.Context, id domain.MessageId, headers *domain.ArticleHeaders, body string, destination domain.NewsgroupName, mode domain.PostingMode, submitter string) (bool, error)
}
