// Package identity resolves artifact owners to github handles and handles to
// the user ids notifications are delivered to.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"

	"github.com/TWLS151/Soootudy-sub000/internal/store"
)

// ErrUnknown means the owner or handle has no mapping. Callers treat it as
// "nobody to notify", not as a failure.
var ErrUnknown = errors.New("identity unknown")

// Member is one entry of the members file, keyed by owner id.
type Member struct {
	ID      string `yaml:"-" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Github  string `yaml:"github" json:"github"`
	Admin   bool   `yaml:"admin,omitempty" json:"admin,omitempty"`
	Virtual bool   `yaml:"virtual,omitempty" json:"virtual,omitempty"`
}

// ParseMembers decodes a YAML mapping of owner id to member.
func ParseMembers(data []byte) ([]Member, error) {
	raw := map[string]Member{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	members := make([]Member, 0, len(raw))
	for id, m := range raw {
		if strings.TrimSpace(m.Github) == "" {
			return nil, fmt.Errorf("decode members: %s has no github handle", id)
		}
		m.ID = id
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

// LoadMembers reads the members file at path. An empty path yields no members.
func LoadMembers(path string) ([]Member, error) {
	if path == "" {
		return []Member{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read members file: %w", err)
	}
	return ParseMembers(data)
}

type profileStore interface {
	LookupUserIDByGithub(ctx context.Context, githubUsername string) (string, error)
}

// Directory answers identity lookups from the members file and the
// user_profiles table. Recipient ids are cached for ttl.
type Directory struct {
	members  map[string]Member
	byGithub map[string]Member
	profiles profileStore
	cache    *gocache.Cache
}

func NewDirectory(members []Member, profiles profileStore, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	d := &Directory{
		members:  make(map[string]Member, len(members)),
		byGithub: make(map[string]Member, len(members)),
		profiles: profiles,
		cache:    gocache.New(ttl, 2*ttl),
	}
	for _, m := range members {
		d.members[m.ID] = m
		d.byGithub[strings.ToLower(m.Github)] = m
	}
	return d
}

// OwnerHandle returns the github handle of the member owning ownerID's
// artifacts.
func (d *Directory) OwnerHandle(_ context.Context, ownerID string) (string, error) {
	m, ok := d.members[ownerID]
	if !ok {
		return "", ErrUnknown
	}
	return m.Github, nil
}

// RecipientID maps a github handle to the user id that receives its
// notifications.
func (d *Directory) RecipientID(ctx context.Context, handle string) (string, error) {
	key := strings.ToLower(handle)
	if cached, ok := d.cache.Get(key); ok {
		return cached.(string), nil
	}
	if d.profiles == nil {
		return "", ErrUnknown
	}
	userID, err := d.profiles.LookupUserIDByGithub(ctx, handle)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUnknown
	}
	if err != nil {
		return "", fmt.Errorf("resolve recipient %s: %w", handle, err)
	}
	d.cache.SetDefault(key, userID)
	return userID, nil
}

// Forget drops a cached recipient, e.g. after the profile changed.
func (d *Directory) Forget(handle string) {
	d.cache.Delete(strings.ToLower(handle))
}

// DisplayName returns the member name for a github handle, matched
// case-insensitively, or the handle itself.
func (d *Directory) DisplayName(handle string) string {
	if m, ok := d.byGithub[strings.ToLower(handle)]; ok && m.Name != "" {
		return m.Name
	}
	return handle
}

// Names lists the display names of real (non-virtual) members, for mention
// highlighting.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.members))
	for _, m := range d.members {
		if m.Name != "" && !m.Virtual {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}
