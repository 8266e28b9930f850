package routing

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabinet-legal/case-messaging/internal/directory"
	"github.com/cabinet-legal/case-messaging/internal/model"
)

func staffedDirectory() *directory.Static {
	dir := directory.NewStatic()
	dir.AddUser(model.User{ID: "s1", Role: model.RoleAdmin, Active: true})
	dir.AddUser(model.User{ID: "s2", Role: model.RoleSuperAdmin, Active: true})
	dir.AddUser(model.User{ID: "s3", Role: model.RoleAdmin, Active: false})
	dir.AddUser(model.User{ID: "cl1", Role: model.RoleClient, Active: true})
	dir.AddUser(model.User{ID: "p1", Role: model.RolePartner, Active: true})
	dir.AddUser(model.User{ID: "g1", Role: model.RoleGuest, Active: true})
	return dir
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func TestRoute_Client(t *testing.T) {
	t.Parallel()

	dir := staffedDirectory()
	policy := New(dir, dir)
	ctx := context.Background()

	t.Run("all_active_staff", func(t *testing.T) {
		decision, err := policy.Route(ctx, model.User{ID: "cl1", Role: model.RoleClient, Active: true}, "", nil, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, sorted(decision.Recipients))
		assert.Equal(t, model.CategoryClientToStaff, decision.Category)
		assert.Empty(t, decision.CopyRecipients)
	})

	t.Run("target_and_copy_ignored", func(t *testing.T) {
		decision, err := policy.Route(ctx, model.User{ID: "cl1", Role: model.RoleClient, Active: true}, "s1", []string{"s2"}, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, sorted(decision.Recipients))
		assert.Empty(t, decision.CopyRecipients)
	})

	t.Run("no_staff_available", func(t *testing.T) {
		empty := directory.NewStatic()
		empty.AddUser(model.User{ID: "cl1", Role: model.RoleClient, Active: true})
		policy := New(empty, empty)

		_, err := policy.Route(ctx, model.User{ID: "cl1", Role: model.RoleClient, Active: true}, "", nil, "")
		assert.ErrorIs(t, err, ErrNoStaffAvailable)
	})

	t.Run("deterministic", func(t *testing.T) {
		sender := model.User{ID: "cl1", Role: model.RoleClient, Active: true}
		first, err := policy.Route(ctx, sender, "", nil, "")
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := policy.Route(ctx, sender, "", nil, "")
			require.NoError(t, err)
			assert.Equal(t, sorted(first.Recipients), sorted(again.Recipients))
			assert.Equal(t, first.Category, again.Category)
		}
	})
}

func TestRoute_Partner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sender := model.User{ID: "p1", Role: model.RolePartner, Active: true}

	t.Run("refused_transmission", func(t *testing.T) {
		dir := staffedDirectory()
		dir.SetTransmission("case-7", "p1", false)
		policy := New(dir, dir)

		_, err := policy.Route(ctx, sender, "", nil, "case-7")
		assert.ErrorIs(t, err, ErrNotAuthorizedForCase)
	})

	t.Run("transmitted_case_with_target", func(t *testing.T) {
		dir := staffedDirectory()
		dir.SetTransmission("case-7", "p1", true)
		policy := New(dir, dir)

		decision, err := policy.Route(ctx, sender, "s1", nil, "case-7")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1"}, decision.Recipients)
		assert.Equal(t, model.CategoryPartnerToStaff, decision.Category)
	})

	t.Run("non_staff_target_rejected", func(t *testing.T) {
		dir := staffedDirectory()
		policy := New(dir, dir)

		_, err := policy.Route(ctx, sender, "cl1", nil, "")
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})

	t.Run("inactive_target_rejected", func(t *testing.T) {
		dir := staffedDirectory()
		policy := New(dir, dir)

		_, err := policy.Route(ctx, sender, "s3", nil, "")
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})

	t.Run("no_target_falls_back_to_all_staff", func(t *testing.T) {
		dir := staffedDirectory()
		policy := New(dir, dir)

		decision, err := policy.Route(ctx, sender, "", nil, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, sorted(decision.Recipients))
		assert.Equal(t, model.CategoryPartnerToStaff, decision.Category)
	})
}

func TestRoute_Staff(t *testing.T) {
	t.Parallel()

	dir := staffedDirectory()
	policy := New(dir, dir)
	ctx := context.Background()
	sender := model.User{ID: "s1", Role: model.RoleAdmin, Active: true}

	tests := []struct {
		name     string
		targetID string
		copy     []string
		wantErr  error
		wantCat  model.Category
		wantCopy []string
	}{
		{name: "target_required", targetID: "", wantErr: ErrTargetRequired},
		{name: "self_addressed", targetID: "s1", wantErr: ErrSelfAddressed},
		{name: "missing_target", targetID: "nobody", wantErr: ErrRecipientNotFound},
		{name: "inactive_target", targetID: "s3", wantErr: ErrRecipientNotFound},
		{name: "to_client", targetID: "cl1", wantCat: model.CategoryStaffToClient},
		{name: "to_staff", targetID: "s2", wantCat: model.CategoryStaffToStaff},
		{name: "to_partner_defaults_staff", targetID: "p1", wantCat: model.CategoryStaffToStaff},
		{name: "copy_valid", targetID: "cl1", copy: []string{"s2"}, wantCat: model.CategoryStaffToClient, wantCopy: []string{"s2"}},
		{name: "copy_drops_sender_and_target", targetID: "cl1", copy: []string{"s1", "cl1", "s2"}, wantCat: model.CategoryStaffToClient, wantCopy: []string{"s2"}},
		{name: "copy_unresolvable", targetID: "cl1", copy: []string{"nobody"}, wantErr: ErrInvalidCopyRecipient},
		{name: "copy_inactive", targetID: "cl1", copy: []string{"s3"}, wantErr: ErrInvalidCopyRecipient},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			decision, err := policy.Route(ctx, sender, tt.targetID, tt.copy, "")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{tt.targetID}, decision.Recipients)
			assert.Equal(t, tt.wantCat, decision.Category)
			assert.Equal(t, tt.wantCopy, decision.CopyRecipients)
		})
	}
}

func TestRoute_Guest(t *testing.T) {
	t.Parallel()

	dir := staffedDirectory()
	policy := New(dir, dir)
	ctx := context.Background()
	sender := model.User{ID: "g1", Role: model.RoleGuest, Active: true}

	t.Run("routes_to_all_staff", func(t *testing.T) {
		decision, err := policy.Route(ctx, sender, "", nil, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, sorted(decision.Recipients))
		assert.Equal(t, model.CategoryClientToStaff, decision.Category)
	})

	t.Run("client_target_forbidden", func(t *testing.T) {
		_, err := policy.Route(ctx, sender, "cl1", nil, "")
		assert.ErrorIs(t, err, ErrClientToClientForbidden)
	})

	t.Run("staff_target_ignored", func(t *testing.T) {
		decision, err := policy.Route(ctx, sender, "s1", nil, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, sorted(decision.Recipients))
	})
}

func TestRoute_UnknownRole(t *testing.T) {
	t.Parallel()

	dir := staffedDirectory()
	policy := New(dir, dir)

	_, err := policy.Route(context.Background(), model.User{ID: "x", Role: model.Role("intern"), Active: true}, "", nil, "")
	assert.ErrorIs(t, err, ErrUnknownRole)
}
