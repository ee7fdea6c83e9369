package service

import (
	"context"

	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/localstore"
	"github.com/studyhub/studyfeed/pkg/models"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Settings is the locally stored preference set.
type Settings struct {
	Theme             string `json:"theme"`
	PushNotifications bool   `json:"pushNotifications"`
	BiometricLogin    bool   `json:"biometricLogin"`
}

// SettingsService reads and writes device preferences. Account edits go
// through the profile service.
type SettingsService struct {
	local    localstore.Store
	profiles *ProfileService
}

func NewSettingsService(local localstore.Store, profiles *ProfileService) *SettingsService {
	return &SettingsService{local: local, profiles: profiles}
}

// Load returns every preference with defaults applied.
func (s *SettingsService) Load() (Settings, error) {
	theme, err := s.Theme()
	if err != nil {
		return Settings{}, err
	}
	push, err := localstore.GetBool(s.local, localstore.KeyPushNotifications, true)
	if err != nil {
		return Settings{}, clierrors.ReadError("Failed to load settings", err)
	}
	bio, err := localstore.GetBool(s.local, localstore.KeyBiometricLogin, false)
	if err != nil {
		return Settings{}, clierrors.ReadError("Failed to load settings", err)
	}
	return Settings{Theme: theme, PushNotifications: push, BiometricLogin: bio}, nil
}

func (s *SettingsService) Theme() (string, error) {
	var theme string
	ok, err := s.local.Get(localstore.KeyTheme, &theme)
	if err != nil {
		return "", clierrors.ReadError("Failed to load theme", err)
	}
	if !ok || (theme != ThemeDark && theme != ThemeLight) {
		return ThemeLight, nil
	}
	return theme, nil
}

func (s *SettingsService) SetTheme(theme string) error {
	if theme != ThemeDark && theme != ThemeLight {
		return clierrors.ValidationError("theme", "Theme must be dark or light")
	}
	if err := s.local.Set(localstore.KeyTheme, theme); err != nil {
		return clierrors.WriteError("save theme", err)
	}
	return nil
}

// ToggleTheme switches between dark and light and returns the new theme.
func (s *SettingsService) ToggleTheme() (string, error) {
	theme, err := s.Theme()
	if err != nil {
		return "", err
	}
	next := ThemeDark
	if theme == ThemeDark {
		next = ThemeLight
	}
	return next, s.SetTheme(next)
}

func (s *SettingsService) SetPushNotifications(on bool) error {
	if err := localstore.SetBool(s.local, localstore.KeyPushNotifications, on); err != nil {
		return clierrors.WriteError("save push setting", err)
	}
	return nil
}

func (s *SettingsService) SetBiometricLogin(on bool) error {
	if err := localstore.SetBool(s.local, localstore.KeyBiometricLogin, on); err != nil {
		return clierrors.WriteError("save biometric setting", err)
	}
	return nil
}

// SaveAccount applies account edits to the profile.
func (s *SettingsService) SaveAccount(ctx context.Context, upd ProfileUpdate) (*models.User, error) {
	return s.profiles.Update(ctx, upd)
}
