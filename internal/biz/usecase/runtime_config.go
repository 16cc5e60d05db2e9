package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/biz/repo"
	"github.com/socky-bot/socky/internal/logging"
)

// Settings keys
const (
	SettingAdmins   = "admins"
	SettingInterval = "interval"
	SettingShutup   = "shutup"
)

// ConfigUsecase keeps RuntimeConfig in sync with the settings table
type ConfigUsecase struct {
	settings repo.SettingsRepo
	cfg      *domain.RuntimeConfig
	log      zerolog.Logger
}

// NewConfigUsecase creates a new runtime config usecase
func NewConfigUsecase(settings repo.SettingsRepo, cfg *domain.RuntimeConfig) *ConfigUsecase {
	return &ConfigUsecase{
		settings: settings,
		cfg:      cfg,
		log:      logging.Get("config"),
	}
}

// Runtime returns the managed config
func (uc *ConfigUsecase) Runtime() *domain.RuntimeConfig {
	return uc.cfg
}

// Load reads every persisted setting; absent keys keep their current values
func (uc *ConfigUsecase) Load(ctx context.Context) error {
	if err := uc.Reload(ctx); err != nil {
		return err
	}

	if d, ok, err := uc.loadSeconds(ctx, SettingInterval); err != nil {
		return err
	} else if ok {
		uc.cfg.SetInterval(d)
	}
	if d, ok, err := uc.loadSeconds(ctx, SettingShutup); err != nil {
		return err
	} else if ok {
		uc.cfg.SetQuietWindow(d)
	}

	uc.log.Info().
		Strs("admins", uc.cfg.Admins()).
		Dur("interval", uc.cfg.Interval()).
		Dur("shutup", uc.cfg.QuietWindow()).
		Msg("Runtime config loaded")
	return nil
}

// Reload re-reads the persisted admin set and unions it with the bootstrap set
func (uc *ConfigUsecase) Reload(ctx context.Context) error {
	admins, err := uc.loadAdmins(ctx)
	if err != nil {
		return err
	}
	uc.cfg.SetPersistedAdmins(admins)
	uc.log.Debug().Strs("admins", uc.cfg.Admins()).Msg("Admins reloaded")
	return nil
}

// AddAdmin persists account as an admin
func (uc *ConfigUsecase) AddAdmin(ctx context.Context, account string) error {
	account = domain.NormalizeIdentity(account)
	if account == "" {
		return fmt.Errorf("%w: account is empty", domain.ErrValidation)
	}

	admins, err := uc.loadAdmins(ctx)
	if err != nil {
		return err
	}
	for _, a := range admins {
		if a == account {
			uc.cfg.SetPersistedAdmins(admins)
			return nil
		}
	}
	admins = append(admins, account)

	if err := uc.saveAdmins(ctx, admins); err != nil {
		return err
	}
	uc.cfg.SetPersistedAdmins(admins)
	uc.log.Info().Str("account", account).Msg("Admin added")
	return nil
}

// DelAdmin removes a persisted admin. Bootstrap admins cannot be removed.
func (uc *ConfigUsecase) DelAdmin(ctx context.Context, account string) error {
	account = domain.NormalizeIdentity(account)
	if uc.cfg.IsBootstrapAdmin(account) {
		return fmt.Errorf("%w: %s is a permanent admin", domain.ErrValidation, account)
	}

	admins, err := uc.loadAdmins(ctx)
	if err != nil {
		return err
	}
	kept := admins[:0]
	found := false
	for _, a := range admins {
		if a == account {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return fmt.Errorf("%w: %s is not an admin", domain.ErrNotFound, account)
	}

	if err := uc.saveAdmins(ctx, kept); err != nil {
		return err
	}
	uc.cfg.SetPersistedAdmins(kept)
	uc.log.Info().Str("account", account).Msg("Admin removed")
	return nil
}

// SetInterval persists and applies the response interval
func (uc *ConfigUsecase) SetInterval(ctx context.Context, d time.Duration) error {
	if err := uc.saveSeconds(ctx, SettingInterval, d); err != nil {
		return err
	}
	uc.cfg.SetInterval(d)
	uc.log.Info().Dur("interval", d).Msg("Interval updated")
	return nil
}

// SetQuietWindow persists and applies the quiet window
func (uc *ConfigUsecase) SetQuietWindow(ctx context.Context, d time.Duration) error {
	if err := uc.saveSeconds(ctx, SettingShutup, d); err != nil {
		return err
	}
	uc.cfg.SetQuietWindow(d)
	uc.log.Info().Dur("shutup", d).Msg("Quiet window updated")
	return nil
}

func (uc *ConfigUsecase) loadAdmins(ctx context.Context) ([]string, error) {
	raw, ok, err := uc.settings.Get(ctx, SettingAdmins)
	if err != nil {
		return nil, &domain.StoreError{Op: "load admins", Err: err}
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var admins []string
	if err := json.Unmarshal([]byte(raw), &admins); err != nil {
		return nil, &domain.StoreError{Op: "decode admins", Err: err}
	}
	out := make([]string, 0, len(admins))
	for _, a := range admins {
		if a = domain.NormalizeIdentity(a); a != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

func (uc *ConfigUsecase) saveAdmins(ctx context.Context, admins []string) error {
	if admins == nil {
		admins = []string{}
	}
	data, err := json.Marshal(admins)
	if err != nil {
		return &domain.StoreError{Op: "encode admins", Err: err}
	}
	if err := uc.settings.Set(ctx, SettingAdmins, string(data)); err != nil {
		return &domain.StoreError{Op: "save admins", Err: err}
	}
	return nil
}

func (uc *ConfigUsecase) loadSeconds(ctx context.Context, key string) (time.Duration, bool, error) {
	raw, ok, err := uc.settings.Get(ctx, key)
	if err != nil {
		return 0, false, &domain.StoreError{Op: "load " + key, Err: err}
	}
	if !ok {
		return 0, false, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		uc.log.Warn().Str("key", key).Str("value", raw).Msg("Ignoring invalid persisted setting")
		return 0, false, nil
	}
	return time.Duration(secs) * time.Second, true, nil
}

func (uc *ConfigUsecase) saveSeconds(ctx context.Context, key string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %s must not be negative", domain.ErrValidation, key)
	}
	secs := strconv.Itoa(int(d / time.Second))
	if err := uc.settings.Set(ctx, key, secs); err != nil {
		return &domain.StoreError{Op: "save " + key, Err: err}
	}
	return nil
}
