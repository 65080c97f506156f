package storage

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"tessgen/internal/adapters/storage/gdrive"
	"tessgen/internal/adapters/storage/localfs"
	"tessgen/internal/config"
	"tessgen/internal/pkg/errors"
)

const (
	ProviderLocalFS = "localfs"
	ProviderGDrive  = "gdrive"
)

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.Storage) (Provider, error) {
	switch cfg.Provider {
	case "", ProviderLocalFS:
		if cfg.LocalRoot == "" {
			return nil, errors.Configuration("storage.new", "STORAGE_LOCAL_ROOT is required for localfs")
		}
		return localfs.New(cfg.LocalRoot), nil

	case ProviderGDrive:
		return newGDriveProvider(ctx, cfg)

	default:
		return nil, errors.Configuration("storage.new", "unknown storage provider: "+cfg.Provider)
	}
}

func newGDriveProvider(ctx context.Context, cfg config.Storage) (Provider, error) {
	for k, v := range map[string]string{
		"GDRIVE_CLIENT_ID":     cfg.GDriveClientID,
		"GDRIVE_CLIENT_SECRET": cfg.GDriveClientSecret,
		"GDRIVE_REFRESH_TOKEN": cfg.GDriveRefreshToken,
	} {
		if v == "" {
			return nil, errors.Configuration("storage.new", "missing env: "+k)
		}
	}

	conf := &oauth2.Config{
		ClientID:     cfg.GDriveClientID,
		ClientSecret: cfg.GDriveClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.GDriveRefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeConfiguration, "storage.new", "create drive service")
	}

	return gdrive.NewClient(srv, cfg.GDriveFolderID), nil
}
