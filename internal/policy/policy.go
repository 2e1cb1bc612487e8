package policy

import (
	"context"

	"github.com/go-while/nntpd/internal/domain"
)

// Config configures a Policy's admission rules, generalizing the
// teacher's PeeringConfig (nntp-peering.go) from a single peer's
// pattern set to this node's own local admission rules.
type Config struct {
	AllowPosting  bool
	AllowIHave    bool
	RejectPatterns []string // applied to every incoming article's destination groups
}

// DefaultConfig mirrors the teacher's own defaults: posting and
// transfer both open, binaries and adult content globally rejected.
func DefaultConfig() Config {
	return Config{
		AllowPosting: true,
		AllowIHave:   true,
		RejectPatterns: append(
			append([]string{}, DefaultBinaryExcludePatterns...),
			DefaultSexExcludePatterns...,
		),
	}
}

// Policy implements capability.PolicyService against a static Config.
// A production deployment would back this with a per-peer or
// per-group override store; this node applies one global rule set.
type Policy struct {
	cfg Config
}

// New returns a Policy enforcing cfg.
func New(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

func (p *Policy) IsPostingAllowed(ctx context.Context, submitter string) (bool, error) {
	return p.cfg.AllowPosting, nil
}

func (p *Policy) IsIHaveTransferAllowed(ctx context.Context, submitter string) (bool, error) {
	return p.cfg.AllowIHave, nil
}

func (p *Policy) IsNewsgroupAllowed(ctx context.Context, name domain.NewsgroupName, mode domain.PostingMode, estNumArticles int64, advertiser string) (bool, error) {
	if name.IsLocalOnly() {
		return false, nil
	}
	result := MatchNewsgroupPatterns(name.String(), []string{"*"}, nil, p.cfg.RejectPatterns)
	return result.Action != "reject", nil
}

func (p *Policy) IsArticleAllowed(ctx context.Context, id domain.MessageId, headers *domain.ArticleHeaders, body string, destination domain.NewsgroupName, mode domain.PostingMode, submitter string) (bool, error) {
	if mode == domain.PostingProhibited {
		return false, nil
	}
	result := MatchNewsgroupPatterns(destination.String(), []string{"*"}, nil, p.cfg.RejectPatterns)
	return result.Action != "reject", nil
}
