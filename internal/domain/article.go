package domain

import "time"

// Article is a stored article: a single canonical identity, possibly
// linked into multiple newsgroups via NewsgroupArticle.
type Article struct {
	MessageID MessageId
	Headers   *ArticleHeaders
	Body      string
	Rejected  bool // permanently declined (IHAVE 437 / POST 441 history)
}

// NewsgroupArticle is a per-group link carrying the group-local article
// number and the admission disposition for that link.
type NewsgroupArticle struct {
	Newsgroup  NewsgroupName
	Number     ArticleNumber
	MessageID  MessageId
	IsAllowed  bool // false marks a known-but-quarantined article
}

// Peer describes an external NNTP host this node exchanges articles
// with.
type Peer struct {
	Label           string
	Address         string
	Disabled        bool
	Capabilities    map[PeerCapability]bool
	ListLastFetched *time.Time

	// AuthUsername/AuthPassword are the AUTHINFO credentials stored
	// with this peer. The outbound client does not send them: dialing a
	// peer performs no AUTHINFO exchange.
	AuthUsername string
	AuthPassword string
}

// PeerCapability is a feature a peer may advertise.
type PeerCapability string

const (
	CapabilityReader    PeerCapability = "READER"
	CapabilityList      PeerCapability = "LIST"
	CapabilityNewNews   PeerCapability = "NEWNEWS"
	CapabilityNewGroups PeerCapability = "NEWGROUPS"
	CapabilityIHave     PeerCapability = "IHAVE"
)

// Has reports whether the peer advertises capability.
func (p *Peer) Has(capability PeerCapability) bool {
	if p.Capabilities == nil {
		return false
	}
	return p.Capabilities[capability]
}

// Feed is a directed replication edge from a local newsgroup to a peer.
type Feed struct {
	Newsgroup    NewsgroupName
	PeerAddress  string
	LastSyncTime *time.Time
}
