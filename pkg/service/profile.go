package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/studyhub/studyfeed/pkg/backend"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBio          = "Learning Enthusiast"
	profileCacheSize    = 128
	defaultPostsPerUser = 20
)

// ProfileUpdate carries the editable profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	DisplayName *string `validate:"omitempty,min=1,max=50"`
	Username    *string `validate:"omitempty,min=2,max=30,startswith=@"`
	Bio         *string `validate:"omitempty,max=160"`
}

// ProfileService loads and edits user documents and the follow graph.
type ProfileService struct {
	gw       *backend.Gateway
	cache    *lru.Cache[string, *models.User]
	validate *validator.Validate
	maxBytes int64
	now      func() time.Time
}

func NewProfileService(gw *backend.Gateway, maxAvatarBytes int64) (*ProfileService, error) {
	cache, err := lru.New[string, *models.User](profileCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile cache: %w", err)
	}
	if maxAvatarBytes <= 0 {
		maxAvatarBytes = DefaultMaxMediaBytes
	}
	return &ProfileService{gw: gw, cache: cache, validate: validator.New(), maxBytes: maxAvatarBytes, now: time.Now}, nil
}

func (s *ProfileService) users() *backend.CollectionRef {
	return s.gw.Collection(backend.CollectionUsers)
}

func (s *ProfileService) fetch(ctx context.Context, uid string) (*models.User, error) {
	doc, err := s.users().Doc(uid).Get(ctx)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := doc.DataTo(&u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	u.UID = doc.ID
	return &u, nil
}

// LoadCurrent returns the signed-in user's profile, creating it on first use.
func (s *ProfileService) LoadCurrent(ctx context.Context) (*models.User, error) {
	me := s.gw.CurrentUser()
	if me == nil {
		return nil, clierrors.AuthError("Sign in to view your profile")
	}

	u, err := s.fetch(ctx, me.UID)
	if err == nil {
		s.cache.Add(u.UID, u)
		return u, nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return nil, clierrors.ReadError("Failed to load profile", err)
	}

	u = NewUserFromIdentity(me, s.now())
	data, err := backend.ToFields(u)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}
	delete(data, "uid")
	data["createdAt"] = s.gw.Timestamp()
	if err := s.users().Doc(me.UID).Set(ctx, data); err != nil {
		return nil, clierrors.WriteError("create profile", err)
	}
	logger.Info("Created profile", "uid", me.UID)
	s.cache.Add(u.UID, u)
	return u, nil
}

// NewUserFromIdentity builds the default profile for a new account.
func NewUserFromIdentity(id *backend.Identity, now time.Time) *models.User {
	name := id.DisplayName
	if name == "" {
		name = "User"
	}
	local := id.Email
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	if local == "" {
		local = "user"
	}
	return &models.User{
		UID:         id.UID,
		Email:       id.Email,
		DisplayName: name,
		Username:    "@" + local,
		PhotoURL:    id.PhotoURL,
		Bio:         defaultBio,
		CreatedAt:   now,
	}
}

// CurrentAuthor is the byline for posts by the signed-in user.
func (s *ProfileService) CurrentAuthor(ctx context.Context) (Author, error) {
	u, err := s.LoadCurrent(ctx)
	if err != nil {
		return Author{}, err
	}
	return Author{ID: u.UID, Name: u.DisplayName, Username: u.Username, PhotoURL: u.PhotoURL}, nil
}

// View returns another user's profile, served from cache when possible.
func (s *ProfileService) View(ctx context.Context, uid string) (*models.User, error) {
	if u, ok := s.cache.Get(uid); ok {
		logger.Debug("Profile cache hit", "uid", uid)
		return u, nil
	}
	u, err := s.fetch(ctx, uid)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, clierrors.NotFoundError("User", uid)
		}
		return nil, clierrors.ReadError("Failed to load profile", err)
	}
	s.cache.Add(uid, u)
	return u, nil
}

// UserPosts lists a user's posts, newest first.
func (s *ProfileService) UserPosts(ctx context.Context, uid string, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = defaultPostsPerUser
	}
	snap, err := s.gw.Collection(backend.CollectionPosts).
		Where("authorId", backend.OpEqual, uid).
		OrderBy("createdAt", backend.Desc).
		Limit(limit).
		Get(ctx)
	if err != nil {
		return nil, clierrors.ReadError("Failed to load posts", err)
	}
	posts, err := backend.DecodeAll[models.Post](snap)
	if err != nil {
		return nil, clierrors.ReadError("Failed to load posts", err)
	}
	for i := range posts {
		posts[i] = *posts[i].Public()
	}
	return posts, nil
}

// Update edits the signed-in user's profile.
func (s *ProfileService) Update(ctx context.Context, upd ProfileUpdate) (*models.User, error) {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return nil, clierrors.AuthError("Sign in to edit your profile")
	}
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	upd = ProfileUpdate{DisplayName: trim(upd.DisplayName), Username: trim(upd.Username), Bio: trim(upd.Bio)}
	if err := s.validate.Struct(upd); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, clierrors.ValidationError(strings.ToLower(fe.Field()), fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
		return nil, clierrors.ValidationError("profile", err.Error())
	}

	data := backend.Fields{}
	if upd.DisplayName != nil {
		data["displayName"] = *upd.DisplayName
	}
	if upd.Username != nil {
		data["username"] = *upd.Username
	}
	if upd.Bio != nil {
		data["bio"] = *upd.Bio
	}
	if len(data) == 0 {
		return s.LoadCurrent(ctx)
	}
	if err := s.users().Doc(uid).Update(ctx, data); err != nil {
		return nil, clierrors.WriteError("update profile", err)
	}
	s.cache.Remove(uid)
	return s.LoadCurrent(ctx)
}

// UploadAvatar stores an image and points the profile photo at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, path string) (string, error) {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return "", clierrors.AuthError("Sign in to edit your profile")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", clierrors.FileNotFoundError(path)
	}
	if info.Size() > s.maxBytes {
		return "", clierrors.ValidationError("image", fmt.Sprintf("Image must be smaller than %dMB", s.maxBytes/(1024*1024)))
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil || !strings.HasPrefix(mime.String(), "image/") {
		return "", clierrors.ValidationError("image", "Only image files are supported")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open avatar: %w", err)
	}
	defer f.Close()

	objectPath := fmt.Sprintf("avatars/%s/%d_%s", uid, s.now().UnixMilli(), filepath.Base(path))
	url, err := s.gw.Upload(ctx, objectPath, f, info.Size(), mime.String())
	if err != nil {
		return "", clierrors.UploadError(err)
	}
	if err := s.users().Doc(uid).Update(ctx, backend.Fields{"photoURL": url}); err != nil {
		return url, clierrors.WriteError("update profile photo", err)
	}
	s.cache.Remove(uid)
	return url, nil
}

func followID(follower, target string) string { return follower + "_" + target }

// IsFollowing reports whether the signed-in user follows target.
func (s *ProfileService) IsFollowing(ctx context.Context, target string) (bool, error) {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return false, clierrors.AuthError("Sign in to follow people")
	}
	_, err = s.gw.Collection(backend.CollectionFollows).Doc(followID(uid, target)).Get(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, backend.ErrNotFound) {
		return false, nil
	}
	return false, clierrors.ReadError("Failed to load follow state", err)
}

// Follow records the edge and bumps both counters concurrently.
func (s *ProfileService) Follow(ctx context.Context, target string) error {
	return s.setFollow(ctx, target, true)
}

// Unfollow removes the edge and decrements both counters.
func (s *ProfileService) Unfollow(ctx context.Context, target string) error {
	return s.setFollow(ctx, target, false)
}

func (s *ProfileService) setFollow(ctx context.Context, target string, follow bool) error {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return clierrors.AuthError("Sign in to follow people")
	}
	if target == "" || target == uid {
		return clierrors.ValidationError("user", "You cannot follow yourself")
	}
	following, err := s.IsFollowing(ctx, target)
	if err != nil {
		return err
	}
	if following == follow {
		return nil
	}

	delta := int64(1)
	if !follow {
		delta = -1
	}
	edge := s.gw.Collection(backend.CollectionFollows).Doc(followID(uid, target))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if follow {
			return edge.Set(gctx, backend.Fields{"followerId": uid, "followingId": target, "createdAt": s.gw.Timestamp()})
		}
		return edge.Delete(gctx)
	})
	g.Go(func() error {
		return s.users().Doc(target).Update(gctx, backend.Fields{"followers": backend.Increment(delta)})
	})
	g.Go(func() error {
		return s.users().Doc(uid).Update(gctx, backend.Fields{"following": backend.Increment(delta)})
	})
	if err := g.Wait(); err != nil {
		return clierrors.WriteError("update follow", err)
	}

	s.cache.Remove(target)
	s.cache.Remove(uid)
	logger.Debug("Follow updated", "target", target, "follow", follow)
	return nil
}

// Completion scores a profile at 20% per filled field and names the first
// missing one.
func Completion(u *models.User) (int, string) {
	fields := []struct {
		value string
		tip   string
	}{
		{u.DisplayName, "Add your name"},
		{u.Username, "Pick a username"},
		{u.Email, "Add your email"},
		{u.Bio, "Write a short bio"},
		{u.PhotoURL, "Upload a profile photo"},
	}
	score, tip := 0, ""
	for _, f := range fields {
		if strings.TrimSpace(f.value) != "" {
			score += 20
		} else if tip == "" {
			tip = f.tip
		}
	}
	return score, tip
}
