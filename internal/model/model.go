// Package model holds the records shared by the annotation packages.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Author identifies who wrote a comment or a reaction.
type Author struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type Comment struct {
	ID         string    `json:"id"`
	ArtifactID string    `json:"artifactId"`
	Author     Author    `json:"author"`
	Content    string    `json:"content"`
	LineNumber *int      `json:"lineNumber"`
	Column     *int      `json:"columnNumber,omitempty"`
	ParentID   *string   `json:"parentId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsReply reports whether the comment belongs to another comment's thread.
func (c Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

// Anchored reports whether the comment is pinned to a line.
func (c Comment) Anchored() bool {
	return c.LineNumber != nil
}

// Edited reports whether the content changed after creation.
func (c Comment) Edited() bool {
	return !c.UpdatedAt.Equal(c.CreatedAt)
}

// Anchor returns the comment's (line, column). A missing column is column 0.
// The second result is false for artifact-level comments.
func (c Comment) Anchor() (Anchor, bool) {
	if c.LineNumber == nil {
		return Anchor{}, false
	}
	column := 0
	if c.Column != nil {
		column = *c.Column
	}
	return Anchor{Line: *c.LineNumber, Column: column}, true
}

// Anchor is a (line, column) position inside an artifact's source text.
// Lines start at 1, columns at 0.
type Anchor struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (a Anchor) String() string {
	return fmt.Sprintf("%d:%d", a.Line, a.Column)
}

type Reaction struct {
	ID        string    `json:"id"`
	CommentID string    `json:"commentId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is an inbox entry for the owner of a commented artifact.
type Notification struct {
	ID              string          `json:"id"`
	RecipientUserID string          `json:"recipientUserId"`
	Actor           Author          `json:"actor"`
	Artifact        ArtifactLocator `json:"artifact"`
	Preview         string          `json:"preview"`
	IsRead          bool            `json:"isRead"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// ArtifactLocator is the decomposed form of an artifact id
// ("<owner>/<period>/<name>").
type ArtifactLocator struct {
	Owner  string `json:"owner"`
	Period string `json:"period"`
	Name   string `json:"name"`
}

func (l ArtifactLocator) ID() string {
	return l.Owner + "/" + l.Period + "/" + l.Name
}

// ParseArtifactID splits an artifact id into its three components. Ids with
// any other number of components are rejected.
func ParseArtifactID(id string) (ArtifactLocator, bool) {
	parts := strings.Split(id, "/")
	if len(parts) != 3 {
		return ArtifactLocator{}, false
	}
	for _, part := range parts {
		if part == "" {
			return ArtifactLocator{}, false
		}
	}
	return ArtifactLocator{Owner: parts[0], Period: parts[1], Name: parts[2]}, true
}

type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// Change is a change-feed event. Receivers refetch rather than patch, so the
// event only says which table and row moved.
type Change struct {
	Table    string     `json:"table"`
	Kind     ChangeKind `json:"kind"`
	Key      string     `json:"key"`
	RecordID string     `json:"recordId"`
	At       time.Time  `json:"at"`
}

const (
	TableComments      = "comments"
	TableReactions     = "reactions"
	TableNotifications = "notifications"
)
