package app

import (
	"github.com/go-playground/validator/v10"

	"github.com/TWLS151/Soootudy-sub000/internal/geometry"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/thread"
)

type CreateCommentInput struct {
	ArtifactID string  `json:"artifactId" validate:"required,artifact"`
	Content    string  `json:"content" validate:"required"`
	Line       *int    `json:"line" validate:"omitempty,gte=1"`
	Column     *int    `json:"column" validate:"omitempty,gte=0"`
	ParentID   *string `json:"parentId" validate:"omitempty,min=1"`
}

type UpdateCommentInput struct {
	ArtifactID string `json:"artifactId" validate:"required,artifact"`
	Content    string `json:"content" validate:"required"`
}

type ReactionInput struct {
	ArtifactID string `json:"artifactId" validate:"required,artifact"`
	Emoji      string `json:"emoji" validate:"required,emoji"`
}

type LayoutInput struct {
	ArtifactID string `validate:"required,artifact"`
	geometry.Metrics
}

type OpenSessionInput struct {
	ArtifactID string `json:"artifactId" validate:"required,artifact"`
	geometry.Metrics
}

// PointerInput is a pointer position on a line. X is absolute within the
// code view, Y relative to the top of the line's row.
type PointerInput struct {
	Line int     `json:"line" validate:"gte=1"`
	X    float64 `json:"x" validate:"gte=0"`
	Y    float64 `json:"y"`
}

type KeyInput struct {
	Key string `json:"key" validate:"required"`
}

type SubmitInput struct {
	Content string `json:"content"`
}

type ResizeInput struct {
	geometry.Metrics
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("artifact", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseArtifactID(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("emoji", func(fl validator.FieldLevel) bool {
		return thread.IsAllowedEmoji(fl.Field().String())
	})
	return v
}
