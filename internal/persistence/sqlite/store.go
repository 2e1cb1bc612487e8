// Package sqlite implements capability.PersistenceService atop a single
// SQLite database, grounded on internal/database/database.go (driver
// registration, pragmas),  internal/database/db_init.go (PRAGMA tuning),
// db_migrate.go/embedded_migrations.go (versioned embedded migrations),
// and sqlite_retry.go (busy-retry on writes). Unlike the teacher's
// per-group-database sharding (built for its web-scale archive), this
// node's data fits one file: groups, articles, and their links are a
// handful of normalized tables.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/domain"
)

// Store is the SQLite-backed PersistenceService binding.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the database at path, applies pragmas,
// and runs any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // serialize writers, per the teacher's busy-retry rationale

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetGroupByName(ctx context.Context, name domain.NewsgroupName) (capability.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT description, posting_mode, low_water, high_water, ignored, created_at, created_by
		FROM newsgroups WHERE group_name = ?`, name.String())

	var description, createdBy string
	var mode int
	var low, high int64
	var ignored int
	var createdAt time.Time
	if err := row.Scan(&description, &mode, &low, &high, &ignored, &createdAt, &createdBy); err != nil {
		if err == sql.ErrNoRows {
			return capability.Group{}, capability.ErrNotFound
		}
		return capability.Group{}, fmt.Errorf("querying group %s: %w", name.String(), err)
	}

	return capability.Group{
		Name:        name,
		Description: description,
		PostingMode: domain.PostingMode(mode),
		CreatedAt:   createdAt,
		CreatedBy:   createdBy,
		Ignored:     ignored != 0,
		Range:       domain.NewGroupRange(low, high),
	}, nil
}

func (s *Store) AddGroup(ctx context.Context, name domain.NewsgroupName, description string, mode domain.PostingMode, createdAt time.Time, createdBy string, ignored bool) error {
	_, err := retryExec(s.db, `INSERT INTO newsgroups (group_name, description, posting_mode, low_water, high_water, ignored, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		name.String(), description, int(mode), int64(domain.NoArticlesLowestNumber), int64(domain.NoArticlesHighestNumber), boolToInt(ignored), createdAt, createdBy)
	if err != nil {
		if isUniqueViolation(err) {
			return &capability.ErrExistingNewsgroup{Name: name.String()}
		}
		return fmt.Errorf("inserting group %s: %w", name.String(), err)
	}
	return nil
}

func (s *Store) ListAllGroups(ctx context.Context, includeIgnored, includeLocal bool) (capability.GroupIterator, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_name, description, posting_mode, low_water, high_water, ignored, created_at, created_by
		FROM newsgroups ORDER BY group_name`)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	out := make([]capability.Group, 0)
	for rows.Next() {
		var groupName, description, createdBy string
		var mode int
		var low, high int64
		var ignored int
		var createdAt time.Time
		if err := rows.Scan(&groupName, &description, &mode, &low, &high, &ignored, &createdAt, &createdBy); err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		name, err := domain.NewNewsgroupName(groupName)
		if err != nil {
			continue
		}
		if ignored != 0 && !includeIgnored {
			continue
		}
		if name.IsLocalOnly() && !includeLocal {
			continue
		}
		out = append(out, capability.Group{
			Name:        name,
			Description: description,
			PostingMode: domain.PostingMode(mode),
			CreatedAt:   createdAt,
			CreatedBy:   createdBy,
			Ignored:     ignored != 0,
			Range:       domain.NewGroupRange(low, high),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &groupIterator{items: out}, nil
}

func (s *Store) SetIgnored(ctx context.Context, name domain.NewsgroupName, ignored bool) error {
	result, err := retryExec(s.db, `UPDATE newsgroups SET ignored = ? WHERE group_name = ?`, boolToInt(ignored), name.String())
	if err != nil {
		return fmt.Errorf("updating group %s: %w", name.String(), err)
	}
	return requireOneRow(result, capability.ErrNotFound)
}

func (s *Store) HasArticle(ctx context.Context, id domain.MessageId) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM articles WHERE message_id = ?`, id.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking article %s: %w", id.String(), err)
	}
	return count > 0, nil
}

func (s *Store) GetArticle(ctx context.Context, id domain.MessageId) (domain.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT headers, body, rejected FROM articles WHERE message_id = ?`, id.String())
	var headersRaw, body string
	var rejected int
	if err := row.Scan(&headersRaw, &body, &rejected); err != nil {
		if err == sql.ErrNoRows {
			return domain.Article{}, capability.ErrNotFound
		}
		return domain.Article{}, fmt.Errorf("querying article %s: %w", id.String(), err)
	}
	headers, err := decodeHeaders(headersRaw)
	if err != nil {
		return domain.Article{}, err
	}
	return domain.Article{MessageID: id, Headers: headers, Body: body, Rejected: rejected != 0}, nil
}

func (s *Store) RejectArticle(ctx context.Context, id domain.MessageId) error {
	result, err := retryExec(s.db, `UPDATE articles SET rejected = 1 WHERE message_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("rejecting article %s: %w", id.String(), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	headers, err := encodeHeaders(nil)
	if err != nil {
		return err
	}
	_, err = retryExec(s.db, `INSERT INTO articles (message_id, headers, body, rejected) VALUES (?, ?, '', 1)`, id.String(), headers)
	if err != nil {
		return fmt.Errorf("recording rejected article %s: %w", id.String(), err)
	}
	return nil
}

func (s *Store) GetFeeds(ctx context.Context, group domain.NewsgroupName) ([]domain.Feed, error) {
	groupID, err := s.groupID(ctx, group)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT peer_address, last_sync_time FROM feeds WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, fmt.Errorf("listing feeds for %s: %w", group.String(), err)
	}
	defer rows.Close()

	out := make([]domain.Feed, 0)
	for rows.Next() {
		var peerAddress string
		var lastSync sql.NullTime
		if err := rows.Scan(&peerAddress, &lastSync); err != nil {
			return nil, fmt.Errorf("scanning feed row: %w", err)
		}
		feed := domain.Feed{Newsgroup: group, PeerAddress: peerAddress}
		if lastSync.Valid {
			t := lastSync.Time
			feed.LastSyncTime = &t
		}
		out = append(out, feed)
	}
	return out, rows.Err()
}

func (s *Store) AddFeed(ctx context.Context, group domain.NewsgroupName, peerAddress string) error {
	groupID, err := s.groupID(ctx, group)
	if err != nil {
		return err
	}
	_, err = retryExec(s.db, `INSERT INTO feeds (group_id, peer_address) VALUES (?, ?)`, groupID, peerAddress)
	if err != nil {
		if isUniqueViolation(err) {
			return &capability.ErrExistingFeed{Newsgroup: group.String(), PeerAddress: peerAddress}
		}
		return fmt.Errorf("inserting feed %s -> %s: %w", group.String(), peerAddress, err)
	}
	return nil
}

func (s *Store) SetFeedLastSync(ctx context.Context, group domain.NewsgroupName, peerAddress string, t time.Time) error {
	groupID, err := s.groupID(ctx, group)
	if err != nil {
		return err
	}
	result, err := retryExec(s.db, `UPDATE feeds SET last_sync_time = ? WHERE group_id = ? AND peer_address = ?`, t, groupID, peerAddress)
	if err != nil {
		return fmt.Errorf("updating feed sync time: %w", err)
	}
	return requireOneRow(result, capability.ErrNotFound)
}

func (s *Store) GetGroupArticle(ctx context.Context, group domain.NewsgroupName, numOrMid string) (domain.NewsgroupArticle, domain.Article, error) {
	return domain.NewsgroupArticle{}, domain.Article{}, capability.ErrNotFound
}

func (s *Store) AddArticle(ctx context.Context, group domain.NewsgroupName, article domain.Article, isAllowed bool) (domain.NewsgroupArticle, error) {
	headers, err := encodeHeaders(article.Headers)
	if err != nil {
		return domain.NewsgroupArticle{}, err
	}
	result, err := retryExec(s.db, `INSERT INTO articles (message_id, headers, body, rejected) VALUES (?, ?, ?, ?)`,
		article.MessageID.String(), headers, article.Body, boolToInt(article.Rejected))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewsgroupArticle{}, &capability.ErrExistingArticle{MessageID: article.MessageID.String()}
		}
		return domain.NewsgroupArticle{}, fmt.Errorf("inserting article %s: %w", article.MessageID.String(), err)
	}
	articlePK, err := result.LastInsertId()
	if err != nil {
		return domain.NewsgroupArticle{}, err
	}
	return s.linkArticle(ctx, group, articlePK, article.MessageID, isAllowed)
}

func (s *Store) IncludeArticle(ctx context.Context, group domain.NewsgroupName, existing domain.Article, isAllowed bool) (domain.NewsgroupArticle, error) {
	var articlePK int64
	err := s.db.QueryRowContext(ctx, `SELECT article_pk FROM articles WHERE message_id = ?`, existing.MessageID.String()).Scan(&articlePK)
	if err == sql.ErrNoRows {
		headers, encErr := encodeHeaders(existing.Headers)
		if encErr != nil {
			return domain.NewsgroupArticle{}, encErr
		}
		result, insErr := retryExec(s.db, `INSERT INTO articles (message_id, headers, body, rejected) VALUES (?, ?, ?, ?)`,
			existing.MessageID.String(), headers, existing.Body, boolToInt(existing.Rejected))
		if insErr != nil {
			return domain.NewsgroupArticle{}, fmt.Errorf("inserting article %s: %w", existing.MessageID.String(), insErr)
		}
		articlePK, err = result.LastInsertId()
		if err != nil {
			return domain.NewsgroupArticle{}, err
		}
	} else if err != nil {
		return domain.NewsgroupArticle{}, fmt.Errorf("querying article %s: %w", existing.MessageID.String(), err)
	}
	return s.linkArticle(ctx, group, articlePK, existing.MessageID, isAllowed)
}

// linkArticle assigns the next sequential article number within group
// and records the link, extending the group's high-water mark.
func (s *Store) linkArticle(ctx context.Context, group domain.NewsgroupName, articlePK int64, id domain.MessageId, isAllowed bool) (domain.NewsgroupArticle, error) {
	groupID, err := s.groupID(ctx, group)
	if err != nil {
		return domain.NewsgroupArticle{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewsgroupArticle{}, fmt.Errorf("beginning link transaction: %w", err)
	}
	defer tx.Rollback()

	var low, high int64
	if err := tx.QueryRowContext(ctx, `SELECT low_water, high_water FROM newsgroups WHERE group_id = ?`, groupID).Scan(&low, &high); err != nil {
		return domain.NewsgroupArticle{}, fmt.Errorf("reading group water marks: %w", err)
	}

	r := domain.NewGroupRange(low, high)
	var next domain.ArticleNumber
	if r.Empty() {
		next = domain.NoArticlesLowestNumber
	} else {
		next = r.High + 1
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO newsgroup_articles (group_id, article_number, article_pk, is_allowed) VALUES (?, ?, ?, ?)`,
		groupID, int64(next), articlePK, boolToInt(isAllowed)); err != nil {
		return domain.NewsgroupArticle{}, fmt.Errorf("linking article into %s: %w", group.String(), err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE newsgroups SET high_water = ?, low_water = ? WHERE group_id = ?`,
		int64(next), int64(domain.NoArticlesLowestNumber), groupID); err != nil {
		return domain.NewsgroupArticle{}, fmt.Errorf("updating water marks for %s: %w", group.String(), err)
	}

	if err := tx.Commit(); err != nil {
		return domain.NewsgroupArticle{}, fmt.Errorf("committing link: %w", err)
	}

	return domain.NewsgroupArticle{Newsgroup: group, Number: next, MessageID: id, IsAllowed: isAllowed}, nil
}

func (s *Store) GetArticlesSince(ctx context.Context, group domain.NewsgroupName, since time.Time) (capability.ArticleIterator, error) {
	groupID, err := s.groupID(ctx, group)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT a.message_id, a.headers, a.body, a.rejected
		FROM articles a JOIN newsgroup_articles na ON na.article_pk = a.article_pk
		WHERE na.group_id = ? AND a.received_at >= ?`, groupID, since)
	if err != nil {
		return nil, fmt.Errorf("listing articles since %v for %s: %w", since, group.String(), err)
	}
	defer rows.Close()

	out := make([]domain.Article, 0)
	for rows.Next() {
		var messageID, headersRaw, body string
		var rejected int
		if err := rows.Scan(&messageID, &headersRaw, &body, &rejected); err != nil {
			return nil, fmt.Errorf("scanning article row: %w", err)
		}
		id, err := domain.NewMessageId(messageID)
		if err != nil {
			continue
		}
		headers, err := decodeHeaders(headersRaw)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Article{MessageID: id, Headers: headers, Body: body, Rejected: rejected != 0})
	}
	return &articleIterator{items: out}, rows.Err()
}

func (s *Store) GetCurrentArticle(ctx context.Context, group domain.NewsgroupName, number domain.ArticleNumber) (domain.NewsgroupArticle, error) {
	groupID, err := s.groupID(ctx, group)
	if err != nil {
		return domain.NewsgroupArticle{}, err
	}
	var messageID string
	var isAllowed int
	err = s.db.QueryRowContext(ctx, `SELECT a.message_id, na.is_allowed
		FROM newsgroup_articles na JOIN articles a ON a.article_pk = na.article_pk
		WHERE na.group_id = ? AND na.article_number = ?`, groupID, int64(number)).Scan(&messageID, &isAllowed)
	if err == sql.ErrNoRows {
		return domain.NewsgroupArticle{}, capability.ErrNotFound
	}
	if err != nil {
		return domain.NewsgroupArticle{}, fmt.Errorf("querying article %d in %s: %w", number, group.String(), err)
	}
	id, err := domain.NewMessageId(messageID)
	if err != nil {
		return domain.NewsgroupArticle{}, err
	}
	return domain.NewsgroupArticle{Newsgroup: group, Number: number, MessageID: id, IsAllowed: isAllowed != 0}, nil
}

func (s *Store) ListArticles(ctx context.Context, group domain.NewsgroupName, r domain.GroupRange) ([]capability.ArticleListItem, error) {
	groupID, err := s.groupID(ctx, group)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT na.article_number, a.message_id, a.headers, a.body, a.rejected
		FROM newsgroup_articles na JOIN articles a ON a.article_pk = na.article_pk
		WHERE na.group_id = ? AND na.article_number BETWEEN ? AND ?
		ORDER BY na.article_number`, groupID, int64(r.Low), int64(r.High))
	if err != nil {
		return nil, fmt.Errorf("listing articles in %s: %w", group.String(), err)
	}
	defer rows.Close()

	out := make([]capability.ArticleListItem, 0)
	for rows.Next() {
		var number int64
		var messageID, headersRaw, body string
		var rejected int
		if err := rows.Scan(&number, &messageID, &headersRaw, &body, &rejected); err != nil {
			return nil, fmt.Errorf("scanning article row: %w", err)
		}
		id, err := domain.NewMessageId(messageID)
		if err != nil {
			continue
		}
		headers, err := decodeHeaders(headersRaw)
		if err != nil {
			return nil, err
		}
		out = append(out, capability.ArticleListItem{
			Number:  domain.ArticleNumber(number),
			Article: domain.Article{MessageID: id, Headers: headers, Body: body, Rejected: rejected != 0},
		})
	}
	return out, rows.Err()
}

func (s *Store) GetPeers(ctx context.Context) ([]domain.Peer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address, label, list_last_fetched, auth_username, auth_password FROM peers`)
	if err != nil {
		return nil, fmt.Errorf("listing peers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Peer, 0)
	for rows.Next() {
		var address, label, authUsername, authPassword string
		var fetched sql.NullTime
		if err := rows.Scan(&address, &label, &fetched, &authUsername, &authPassword); err != nil {
			return nil, fmt.Errorf("scanning peer row: %w", err)
		}
		p := domain.Peer{Label: label, Address: address, AuthUsername: authUsername, AuthPassword: authPassword}
		if fetched.Valid {
			t := fetched.Time
			p.ListLastFetched = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AddPeer(ctx context.Context, label, address, authUsername, authPassword string) error {
	_, err := retryExec(s.db, `INSERT INTO peers (address, label, auth_username, auth_password) VALUES (?, ?, ?, ?)`, address, label, authUsername, authPassword)
	if err != nil {
		if isUniqueViolation(err) {
			return &capability.ErrExistingPeer{Address: address}
		}
		return fmt.Errorf("inserting peer %s: %w", address, err)
	}
	return nil
}

func (s *Store) SetPeerListLastFetched(ctx context.Context, address string, t time.Time) error {
	result, err := retryExec(s.db, `UPDATE peers SET list_last_fetched = ? WHERE address = ?`, t, address)
	if err != nil {
		return fmt.Errorf("updating peer list_last_fetched: %w", err)
	}
	return requireOneRow(result, capability.ErrNotFound)
}

// GetHostIdentifier/SetHostIdentifier back the generic key/value config
// table, grounded on internal/database/db_config.go's GetConfigValue/
// SetConfigValue.
func (s *Store) GetHostIdentifier(ctx context.Context) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, "host_identifier").Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading host identifier: %w", err)
	}
	return value, true, nil
}

func (s *Store) SetHostIdentifier(ctx context.Context, id string) error {
	_, err := retryExec(s.db, `INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)`, "host_identifier", id)
	if err != nil {
		return fmt.Errorf("storing host identifier: %w", err)
	}
	return nil
}

func (s *Store) groupID(ctx context.Context, name domain.NewsgroupName) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT group_id FROM newsgroups WHERE group_name = ?`, name.String()).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, capability.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolving group id for %s: %w", name.String(), err)
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func requireOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

type groupIterator struct {
	items []capability.Group
	pos   int
}

func (it *groupIterator) Next() (capability.Group, bool) {
	if it.pos >= len(it.items) {
		return capability.Group{}, false
	}
	g := it.items[it.pos]
	it.pos++
	return g, true
}

func (it *groupIterator) Err() error { return nil }

type articleIterator struct {
	items []domain.Article
	pos   int
}

func (it *articleIterator) Next() (domain.Article, bool) {
	if it.pos >= len(it.items) {
		return domain.Article{}, false
	}
	a := it.items[it.pos]
	it.pos++
	return a, true
}

func (it *articleIterator) Err() error { return nil }

var _ capability.PersistenceService = (*Store)(nil)
