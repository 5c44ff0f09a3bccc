package surface

import (
	"fmt"
	"net/url"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

// People supplies display names and the names recognised in mentions.
type People interface {
	DisplayName(handle string) string
	Names() []string
}

type noPeople struct{}

func (noPeople) DisplayName(handle string) string { return handle }
func (noPeople) Names() []string                  { return nil }

// AvatarURL returns the author's avatar, falling back to the github avatar
// of their handle at the requested pixel size.
func AvatarURL(author model.Author, size int) string {
	if author.AvatarURL != "" {
		return author.AvatarURL
	}
	if size <= 0 {
		size = 40
	}
	return fmt.Sprintf("https://github.com/%s.png?size=%d", url.PathEscape(author.Username), size)
}
