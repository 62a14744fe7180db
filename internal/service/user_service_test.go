package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/nsvirk/profileapi/internal/models"
	"github.com/nsvirk/profileapi/internal/repository"
	"github.com/nsvirk/profileapi/pkg/utils/auditlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testAvatarMax = 1024

func newUserService(users *memUsers, sessions *memSessions) (*UserService, *memAvatars, *fakeAuditor) {
	avatars := newMemAvatars()
	audit := &fakeAuditor{}
	return NewUserService(users, sessions, avatars, audit, testAvatarMax), avatars, audit
}

func TestGetUser(t *testing.T) {
	users := newMemUsers(&models.UserModel{ID: "u1", Firstname: "Ana"})
	svc, _, _ := newUserService(users, newMemSessions())

	user, err := svc.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Firstname)

	_, err = svc.GetUser(context.Background(), "nope")
	requireAPIError(t, err, CodeUserNotFound, http.StatusNotFound)

	users.readErr = &repository.StoreError{Op: "read user", Err: errors.New("boom")}
	_, err = svc.GetUser(context.Background(), "u1")
	requireAPIError(t, err, CodeUserStore, http.StatusInternalServerError)
}

func TestSearchUsers(t *testing.T) {
	users := newMemUsers(
		&models.UserModel{ID: "u1", Firstname: "Ana", Lastname: "Silva", Email: "ana@example.com"},
		&models.UserModel{ID: "u2", Firstname: "Bia", Lastname: "Souza", Email: "bia@example.com"},
	)
	svc, _, _ := newUserService(users, newMemSessions())

	found, err := svc.SearchUsers(context.Background(), " silva ")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "u1", found[0].ID)

	_, err = svc.SearchUsers(context.Background(), "   ")
	requireAPIError(t, err, CodeInvalidSearch, http.StatusBadRequest)
}

func TestGetCurrentUser_StoreError(t *testing.T) {
	users := newMemUsers()
	users.readErr = errors.New("down")
	svc, _, _ := newUserService(users, newMemSessions())

	_, err := svc.GetCurrentUser(context.Background(), "u1")
	requireAPIError(t, err, CodeCurrentUserStore, http.StatusInternalServerError)
}

func TestUpdateProfile_MergesProvidedFields(t *testing.T) {
	users := newMemUsers(&models.UserModel{ID: "u1", Firstname: "Ana", Lastname: "Silva", About: "hi", Gender: "F"})
	svc, _, audit := newUserService(users, newMemSessions())

	user, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{Lastname: "Souza", Celular: "(11) 98765-4321"})
	require.NoError(t, err)

	assert.Equal(t, "Ana", user.Firstname)
	assert.Equal(t, "Souza", user.Lastname)
	assert.Equal(t, "hi", user.About)
	assert.Equal(t, "F", user.Gender)
	assert.Equal(t, "(11) 98765-4321", users.get("u1").Celular)
	assert.Equal(t, []string{auditlog.EventProfileUpdated}, audit.events())
}

func TestUpdateProfile_Rejects(t *testing.T) {
	cases := []struct {
		name string
		in   ProfileInput
		code int
	}{
		{"nothing to update", ProfileInput{}, CodeNoParameters},
		{"bad phone", ProfileInput{Celular: "123"}, CodeInvalidPhone},
		{"bad cpf", ProfileInput{Cpf: "111.111.111-11"}, CodeInvalidField},
		{"bad gender", ProfileInput{Gender: "Z"}, CodeInvalidField},
		{"future birthday", ProfileInput{Birthday: "2999-01-01"}, CodeInvalidField},
		{"long about", ProfileInput{About: strings.Repeat("a", 501)}, CodeInvalidField},
		{"avatar not a url", ProfileInput{Avatar: "javascript:alert(1)"}, CodeInvalidField},
		{"avatar from the store", ProfileInput{Avatar: "http://cdn.test/avatars/u2-1.png"}, CodeInvalidField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users := newMemUsers(&models.UserModel{ID: "u1", Firstname: "Ana"})
			svc, _, _ := newUserService(users, newMemSessions())
			_, err := svc.UpdateProfile(context.Background(), "u1", tc.in)
			requireAPIError(t, err, tc.code, http.StatusBadRequest)
		})
	}
}

func TestUpdateProfile_AcceptsExternalAvatar(t *testing.T) {
	users := newMemUsers(&models.UserModel{ID: "u1", Firstname: "Ana", Avatar: "http://cdn.test/avatars/u1-1.png"})
	svc, _, _ := newUserService(users, newMemSessions())

	// resending the current avatar is fine
	_, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{Avatar: "http://cdn.test/avatars/u1-1.png", About: "hi"})
	require.NoError(t, err)

	user, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{Avatar: "https://gravatar.com/avatar/abc"})
	require.NoError(t, err)
	assert.Equal(t, "https://gravatar.com/avatar/abc", user.Avatar)
}

func TestUpdateProfile_StoreErrors(t *testing.T) {
	users := newMemUsers(&models.UserModel{ID: "u1", Firstname: "Ana"})
	svc, _, _ := newUserService(users, newMemSessions())

	users.saveErr = errors.New("write failed")
	_, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{Firstname: "Bia"})
	requireAPIError(t, err, CodeProfileUpdate, http.StatusInternalServerError)

	users.readErr = errors.New("read failed")
	_, err = svc.UpdateProfile(context.Background(), "u1", ProfileInput{Firstname: "Bia"})
	requireAPIError(t, err, CodeProfileUserStore, http.StatusInternalServerError)
}

func TestUpdateAvatar_ReplacesPrevious(t *testing.T) {
	users := newMemUsers(&models.UserModel{ID: "u1", Avatar: "http://cdn.test/avatars/u1-old.png"})
	svc, avatars, audit := newUserService(users, newMemSessions())
	avatars.objects["http://cdn.test/avatars/u1-old.png"] = "old"

	user, err := svc.UpdateAvatar(context.Background(), "u1", &AvatarUpload{
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("\x89PNG"),
	})
	require.NoError(t, err)

	assert.NotEqual(t, "http://cdn.test/avatars/u1-old.png", user.Avatar)
	assert.Contains(t, avatars.objects, user.Avatar)
	assert.NotContains(t, avatars.objects, "http://cdn.test/avatars/u1-old.png")
	assert.Equal(t, []string{"http://cdn.test/avatars/u1-old.png"}, avatars.removed)
	assert.Equal(t, []string{auditlog.EventAvatarUpdated}, audit.events())
}

func TestUpdateAvatar_KeepsOtherUsersFiles(t *testing.T) {
	users := newMemUsers(&models.UserModel{ID: "alice"}, &models.UserModel{ID: "bob"})
	svc, avatars, _ := newUserService(users, newMemSessions())
	ctx := context.Background()
	png := func() *AvatarUpload {
		return &AvatarUpload{ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")}
	}

	bob, err := svc.UpdateAvatar(ctx, "bob", png())
	require.NoError(t, err)

	// alice cannot point her profile at bob's file
	_, err = svc.UpdateProfile(ctx, "alice", ProfileInput{Avatar: bob.Avatar})
	requireAPIError(t, err, CodeInvalidField, http.StatusBadRequest)

	// and a stale foreign URL is never removed on her behalf
	stale := users.get("alice")
	stale.Avatar = bob.Avatar
	_, err = svc.UpdateAvatar(ctx, "alice", png())
	require.NoError(t, err)
	assert.Contains(t, avatars.objects, bob.Avatar)
}

func TestUpdateAvatar_InvalidUpload(t *testing.T) {
	users := newMemUsers(&models.UserModel{ID: "u1"})
	svc, avatars, _ := newUserService(users, newMemSessions())

	cases := map[string]*AvatarUpload{
		"missing":    nil,
		"wrong type": {ContentType: "application/pdf", Size: 4, Body: strings.NewReader("%PDF")},
		"too large":  {ContentType: "image/png", Size: testAvatarMax + 1, Body: strings.NewReader("")},
	}
	for name, upload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.UpdateAvatar(context.Background(), "u1", upload)
			requireAPIError(t, err, CodeInvalidAvatar, http.StatusBadRequest)
		})
	}
	assert.Empty(t, avatars.objects)
}

func TestUpdateAvatar_RemovesNewFileWhenUpdateFails(t *testing.T) {
	users := newMemUsers(&models.UserModel{ID: "u1", Avatar: "http://cdn.test/avatars/old.png"})
	svc, avatars, _ := newUserService(users, newMemSessions())
	users.saveErr = errors.New("write failed")

	_, err := svc.UpdateAvatar(context.Background(), "u1", &AvatarUpload{ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")})
	requireAPIError(t, err, CodeProfileUpdate, http.StatusInternalServerError)

	assert.Empty(t, avatars.objects)
	require.Len(t, avatars.removed, 1)
	assert.NotEqual(t, "http://cdn.test/avatars/old.png", avatars.removed[0])
}

func TestUpdateAvatar_StorageFailure(t *testing.T) {
	users := newMemUsers(&models.UserModel{ID: "u1"})
	svc, avatars, _ := newUserService(users, newMemSessions())
	avatars.saveErr = errors.New("bucket gone")

	_, err := svc.UpdateAvatar(context.Background(), "u1", &AvatarUpload{ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")})
	requireAPIError(t, err, CodeAvatarStorage, http.StatusInternalServerError)
}

func TestChangePassword(t *testing.T) {
	users := newMemUsers(&models.UserModel{ID: "u1", Password: hashed(t, "secret1")})
	svc, _, audit := newUserService(users, newMemSessions())

	_, err := svc.ChangePassword(context.Background(), "u1", "secret1", "123")
	requireAPIError(t, err, CodeInvalidPassword, http.StatusBadRequest)

	_, err = svc.ChangePassword(context.Background(), "u1", "wrong", "newsecret")
	requireAPIError(t, err, CodeWrongPassword, http.StatusUnauthorized)

	_, err = svc.ChangePassword(context.Background(), "u1", "secret1", "newsecret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.get("u1").Password), []byte("newsecret")))
	assert.Equal(t, []string{auditlog.EventPasswordChanged}, audit.events())
}

func TestToggleBlocked(t *testing.T) {
	admin := &models.UserModel{ID: "admin", Role: models.RoleAdmin}
	plain := &models.UserModel{ID: "u1", Role: models.RoleUser}
	target := &models.UserModel{ID: "u2", Role: models.RoleUser}

	t.Run("non admin is forbidden", func(t *testing.T) {
		svc, _, _ := newUserService(newMemUsers(admin, plain, target), newMemSessions())
		_, err := svc.ToggleBlocked(context.Background(), "u1", "u2", true)
		requireAPIError(t, err, CodePermissionDenied, http.StatusForbidden)
	})

	t.Run("unknown target", func(t *testing.T) {
		svc, _, _ := newUserService(newMemUsers(admin), newMemSessions())
		_, err := svc.ToggleBlocked(context.Background(), "admin", "ghost", true)
		requireAPIError(t, err, CodeBlockNotFound, http.StatusNotFound)
	})

	t.Run("blocking revokes sessions", func(t *testing.T) {
		users := newMemUsers(admin, &models.UserModel{ID: "u2"})
		sessions := newMemSessions(
			&models.SessionModel{ID: "s1", User: "u2", Token: "a"},
			&models.SessionModel{ID: "s2", User: "admin", Token: "b"},
		)
		svc, _, audit := newUserService(users, sessions)

		user, err := svc.ToggleBlocked(context.Background(), "admin", "u2", true)
		require.NoError(t, err)
		assert.True(t, user.Blocked)
		assert.Equal(t, 1, sessions.count())
		assert.Equal(t, []string{auditlog.EventBlocked}, audit.events())

		user, err = svc.ToggleBlocked(context.Background(), "admin", "u2", false)
		require.NoError(t, err)
		assert.False(t, user.Blocked)
		assert.Equal(t, []string{auditlog.EventBlocked, auditlog.EventUnblocked}, audit.events())
	})
}
