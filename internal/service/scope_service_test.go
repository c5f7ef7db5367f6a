package service

import (
	"context"
	"testing"

	"github.com/adpulse/go-expiry-service/internal/domain"
	apperr "github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

type fakeDirectory struct {
	users   []domain.DirectoryUser
	groups  map[string]domain.Group
	members map[string][]domain.DirectoryUser
}

func (f *fakeDirectory) ListUsers(ctx context.Context) ([]domain.DirectoryUser, error) {
	return f.users, nil
}

func (f *fakeDirectory) FindGroupByName(ctx context.Context, name string) (domain.Group, error) {
	g, ok := f.groups[name]
	if !ok {
		return domain.Group{}, apperr.NewGroupNotFoundError(name)
	}
	return g, nil
}

func (f *fakeDirectory) ListTransitiveMembers(ctx context.Context, groupID string) ([]domain.DirectoryUser, error) {
	return f.members[groupID], nil
}

func snapshotDirectory() []domain.DirectoryUser {
	return []domain.DirectoryUser{
		{ID: "u1", UserPrincipalName: "alice@corp.test", AssignedGroups: []string{"IT Staff"}},
		{ID: "u2", UserPrincipalName: "bob@corp.test", AssignedGroups: []string{"Finance"}},
		{ID: "u3", UserPrincipalName: "carol@corp.test", AssignedGroups: []string{"it staff", "Finance"}},
		{ID: "u4", UserPrincipalName: "dave@corp.test"},
	}
}

func TestResolveSnapshotCaseInsensitive(t *testing.T) {
	svc := NewScopeService(logger.NewLogger())

	got := svc.ResolveSnapshot([]string{"IT STAFF"}, snapshotDirectory())
	if len(got) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(got))
	}
	if got[0].ID != "u1" || got[1].ID != "u3" {
		t.Fatalf("unexpected targets: %q, %q", got[0].ID, got[1].ID)
	}
}

func TestResolveSnapshotUnion(t *testing.T) {
	svc := NewScopeService(logger.NewLogger())

	got := svc.ResolveSnapshot([]string{"IT Staff", "finance"}, snapshotDirectory())
	if len(got) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(got))
	}
	for _, u := range got {
		if u.ID == "u3" {
			return
		}
	}
	t.Fatal("user in both groups missing from union")
}

func TestResolveSnapshotAllUsersSentinel(t *testing.T) {
	svc := NewScopeService(logger.NewLogger())

	tests := []struct {
		name   string
		groups []string
	}{
		{"exact", []string{"All Users"}},
		{"lowercase", []string{"all users"}},
		{"substring", []string{"Contoso All Users Pilot"}},
		{"alongside unknown group", []string{"No Such Group", "ALL USERS"}},
		{"empty scope", nil},
	}
	dir := snapshotDirectory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.ResolveSnapshot(tt.groups, dir)
			if len(got) != len(dir) {
				t.Fatalf("expected whole directory (%d), got %d", len(dir), len(got))
			}
		})
	}
}

func TestResolveSnapshotNoMatches(t *testing.T) {
	svc := NewScopeService(logger.NewLogger())

	got := svc.ResolveSnapshot([]string{"Ghosts"}, snapshotDirectory())
	if len(got) != 0 {
		t.Fatalf("expected empty scope, got %d targets", len(got))
	}
}

func TestResolveDirectoryTransitiveUnion(t *testing.T) {
	svc := NewScopeService(logger.NewLogger())
	dir := &fakeDirectory{
		groups: map[string]domain.Group{
			"IT Staff": {ID: "g1", DisplayName: "IT Staff"},
			"Finance":  {ID: "g2", DisplayName: "Finance"},
		},
		members: map[string][]domain.DirectoryUser{
			"g1": {{ID: "u1"}, {ID: "u3"}},
			"g2": {{ID: "u2"}, {ID: "u3"}},
		},
	}

	got, err := svc.ResolveDirectory(context.Background(), []string{"IT Staff", "Finance"}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 deduplicated targets, got %d", len(got))
	}
}

func TestResolveDirectoryGroupNotFound(t *testing.T) {
	svc := NewScopeService(logger.NewLogger())
	dir := &fakeDirectory{groups: map[string]domain.Group{}}

	_, err := svc.ResolveDirectory(context.Background(), []string{"Missing"}, dir)
	if !apperr.Is(err, apperr.CodeGroupNotFound) {
		t.Fatalf("expected GROUP_NOT_FOUND, got %v", err)
	}
}

func TestResolveDirectorySentinelListsEveryone(t *testing.T) {
	svc := NewScopeService(logger.NewLogger())
	dir := &fakeDirectory{users: snapshotDirectory()}

	got, err := svc.ResolveDirectory(context.Background(), []string{"all users"}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(dir.users) {
		t.Fatalf("expected whole directory, got %d", len(got))
	}
}
