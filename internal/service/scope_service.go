package service

import (
	"context"
	"strings"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// allUsersSentinel short-circuits scope resolution to the whole directory.
const allUsersSentinel = "all users"

// DirectoryClient is the slice of the Graph client the scope resolver and
// job pipeline consume.
type DirectoryClient interface {
	ListUsers(ctx context.Context) ([]domain.DirectoryUser, error)
	FindGroupByName(ctx context.Context, name string) (domain.Group, error)
	ListTransitiveMembers(ctx context.Context, groupID string) ([]domain.DirectoryUser, error)
}

// ScopeService computes the concrete target population for a profile's
// assigned group names.
type ScopeService struct {
	log *logger.Logger
}

// NewScopeService creates a new scope service
func NewScopeService(log *logger.Logger) *ScopeService {
	return &ScopeService{log: log}
}

// containsAllUsers reports whether any configured name carries the
// "All Users" sentinel, matched case-insensitively as a substring.
func containsAllUsers(groupNames []string) bool {
	for _, name := range groupNames {
		if strings.Contains(strings.ToLower(name), allUsersSentinel) {
			return true
		}
	}
	return false
}

// ResolveSnapshot filters a pre-fetched directory by the configured group
// names. Names are matched case-insensitively against each principal's
// memberships; multiple names union. The sentinel wins over everything
// else, including names that match no group at all.
func (s *ScopeService) ResolveSnapshot(groupNames []string, directory []domain.DirectoryUser) []domain.DirectoryUser {
	if len(groupNames) == 0 || containsAllUsers(groupNames) {
		return directory
	}

	wanted := make(map[string]struct{}, len(groupNames))
	for _, name := range groupNames {
		wanted[strings.ToLower(name)] = struct{}{}
	}

	var out []domain.DirectoryUser
	for _, u := range directory {
		for _, membership := range u.AssignedGroups {
			if _, ok := wanted[strings.ToLower(membership)]; ok {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

// ResolveDirectory computes the target population against the live
// directory, using transitive membership so nested groups are honored.
// A configured name with zero exact matches fails with GROUP_NOT_FOUND.
func (s *ScopeService) ResolveDirectory(ctx context.Context, groupNames []string, client DirectoryClient) ([]domain.DirectoryUser, error) {
	if len(groupNames) == 0 || containsAllUsers(groupNames) {
		return client.ListUsers(ctx)
	}

	seen := make(map[string]struct{})
	var out []domain.DirectoryUser
	for _, name := range groupNames {
		group, err := client.FindGroupByName(ctx, name)
		if err != nil {
			return nil, err
		}
		members, err := client.ListTransitiveMembers(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	s.log.Info("Scope resolved", "groups", len(groupNames), "targets", len(out))
	return out, nil
}
