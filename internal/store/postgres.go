package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
	ids func() string
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now, ids: uuid.NewString}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const commentColumns = `id, artifact_id, user_id, github_username, COALESCE(avatar_url, ''), content,
		line_number, column_number, parent_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (model.Comment, error) {
	var (
		c        model.Comment
		line     sql.NullInt64
		column   sql.NullInt64
		parentID sql.NullString
	)
	if err := row.Scan(
		&c.ID, &c.ArtifactID, &c.Author.UserID, &c.Author.Username, &c.Author.AvatarURL, &c.Content,
		&line, &column, &parentID, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return model.Comment{}, err
	}
	if line.Valid {
		v := int(line.Int64)
		c.LineNumber = &v
	}
	if column.Valid {
		v := int(column.Int64)
		c.Column = &v
	}
	if parentID.Valid {
		v := parentID.String
		c.ParentID = &v
	}
	return c, nil
}

// ListComments returns every comment on an artifact, oldest first. Rows with
// equal created_at keep the order the database returns them in.
func (s *PostgresStore) ListComments(ctx context.Context, artifactID string) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE artifact_id=$1
		ORDER BY created_at ASC
	`, artifactID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]model.Comment, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// GetComment returns ErrNotFound for ids that are not UUIDs without asking
// the database.
func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (model.Comment, error) {
	if !isUUID(commentID) {
		return model.Comment{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=$1`, commentID)
	item, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Comment{}, ErrNotFound
	}
	if err != nil {
		return model.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return item, nil
}

// InsertComment stores a new comment with created_at equal to updated_at.
func (s *PostgresStore) InsertComment(ctx context.Context, in NewComment) (model.Comment, error) {
	now := s.now().UTC()
	item := model.Comment{
		ID:         s.ids(),
		ArtifactID: in.ArtifactID,
		Author:     in.Author,
		Content:    in.Content,
		LineNumber: in.LineNumber,
		Column:     in.Column,
		ParentID:   in.ParentID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, artifact_id, user_id, github_username, avatar_url, content,
			line_number, column_number, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $10)
	`, item.ID, item.ArtifactID, item.Author.UserID, item.Author.Username, item.Author.AvatarURL, item.Content,
		nullInt(item.LineNumber), nullInt(item.Column), nullString(item.ParentID), now)
	if err != nil {
		return model.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return item, nil
}

// UpdateComment replaces the content of a comment written by userID. It
// reports false when no such comment exists for that author.
func (s *PostgresStore) UpdateComment(ctx context.Context, commentID, userID, content string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET content=$3, updated_at=$4
		WHERE id=$1 AND user_id=$2
	`, commentID, userID, content, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("update comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update comment rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteComment removes a comment written by userID. Replies and reactions go
// with it through ON DELETE CASCADE.
func (s *PostgresStore) DeleteComment(ctx context.Context, commentID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1 AND user_id=$2`, commentID, userID)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListReactions(ctx context.Context, artifactID string) ([]model.Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.comment_id, r.user_id, r.github_username, r.emoji, r.created_at
		FROM comment_reactions r
		JOIN comments c ON c.id = r.comment_id
		WHERE c.artifact_id=$1
		ORDER BY r.created_at ASC
	`, artifactID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	items := make([]model.Reaction, 0)
	for rows.Next() {
		var item model.Reaction
		if err := rows.Scan(&item.ID, &item.CommentID, &item.UserID, &item.Username, &item.Emoji, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return items, nil
}

// ToggleReaction removes the (comment, user, emoji) reaction if present and
// inserts it otherwise. The result reports whether it is now present.
func (s *PostgresStore) ToggleReaction(ctx context.Context, commentID string, user model.Author, emoji string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM comment_reactions
		WHERE comment_id=$1 AND user_id=$2 AND emoji=$3
	`, commentID, user.UserID, emoji)
	if err != nil {
		return false, fmt.Errorf("delete reaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete reaction rows: %w", err)
	}
	if affected > 0 {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO comment_reactions (id, comment_id, user_id, github_username, emoji, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (comment_id, user_id, emoji) DO NOTHING
	`, s.ids(), commentID, user.UserID, user.Username, emoji, s.now().UTC()); err != nil {
		return false, fmt.Errorf("insert reaction: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	n.ID = s.ids()
	n.IsRead = false
	n.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_user_id, actor_user_id, actor_github_username, actor_avatar_url,
			artifact_owner, artifact_period, artifact_name, preview, is_read, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, FALSE, $10)
	`, n.ID, n.RecipientUserID, n.Actor.UserID, n.Actor.Username, n.Actor.AvatarURL,
		n.Artifact.Owner, n.Artifact.Period, n.Artifact.Name, n.Preview, n.CreatedAt)
	if err != nil {
		return model.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns the newest limit notifications of a recipient.
func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_user_id, actor_user_id, actor_github_username, COALESCE(actor_avatar_url, ''),
			artifact_owner, artifact_period, artifact_name, preview, is_read, created_at
		FROM notifications
		WHERE recipient_user_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID, &n.RecipientUserID, &n.Actor.UserID, &n.Actor.Username, &n.Actor.AvatarURL,
			&n.Artifact.Owner, &n.Artifact.Period, &n.Artifact.Name, &n.Preview, &n.IsRead, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::int FROM notifications WHERE recipient_user_id=$1 AND is_read=FALSE
	`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead flags one of userID's notifications as read. It
// reports false when the notification is not theirs or does not exist.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID, userID string) (bool, error) {
	if !isUUID(notificationID) {
		return false, nil
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read=TRUE WHERE id=$1 AND recipient_user_id=$2
	`, notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read=TRUE WHERE recipient_user_id=$1 AND is_read=FALSE
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read rows: %w", err)
	}
	return affected, nil
}

// UpsertUserProfile records the github handle behind a user id.
func (s *PostgresStore) UpsertUserProfile(ctx context.Context, profile UserProfile) error {
	if strings.TrimSpace(profile.UserID) == "" || strings.TrimSpace(profile.GithubUsername) == "" {
		return fmt.Errorf("upsert user profile: user id and github username are required")
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, github_username, avatar_url, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (user_id) DO UPDATE
		SET github_username=EXCLUDED.github_username, avatar_url=EXCLUDED.avatar_url, updated_at=EXCLUDED.updated_at
	`, profile.UserID, profile.GithubUsername, profile.AvatarURL, s.now().UTC()); err != nil {
		return fmt.Errorf("upsert user profile: %w", err)
	}
	return nil
}

// LookupUserIDByGithub resolves a github handle, case-insensitively, to the
// user id notifications are addressed to.
func (s *PostgresStore) LookupUserIDByGithub(ctx context.Context, githubUsername string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM user_profiles WHERE LOWER(github_username)=LOWER($1)
	`, githubUsername).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup user by github: %w", err)
	}
	return userID, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
