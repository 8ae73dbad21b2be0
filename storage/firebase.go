package storage

import (
	"context"
	"encoding/json"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

// FirebaseConfig holds the settings for the hosted realtime database.
type FirebaseConfig struct {
	DatabaseURL     string
	ProjectID       string
	CredentialsJSON string
	CredentialsFile string
}

// FirebaseTree is the TreeStore backed by Firebase Realtime Database.
type FirebaseTree struct {
	client *db.Client
}

func NewFirebaseTree(ctx context.Context, cfg FirebaseConfig) (*FirebaseTree, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("firebase database url is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		DatabaseURL: cfg.DatabaseURL,
		ProjectID:   cfg.ProjectID,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase database: %w", err)
	}

	return &FirebaseTree{client: client}, nil
}

func (f *FirebaseTree) Get(ctx context.Context, path string, dest interface{}) (bool, error) {
	var raw json.RawMessage
	if err := f.client.NewRef(path).Get(ctx, &raw); err != nil {
		return false, unavailable("get", path, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// Set and the other writes pass server timestamp placeholders through
// untouched; the database resolves them itself.
func (f *FirebaseTree) Set(ctx context.Context, path string, value interface{}) error {
	if err := f.client.NewRef(path).Set(ctx, value); err != nil {
		return unavailable("set", path, err)
	}
	return nil
}

func (f *FirebaseTree) Push(ctx context.Context, path string, value interface{}) (string, error) {
	ref, err := f.client.NewRef(path).Push(ctx, value)
	if err != nil {
		return "", unavailable("push", path, err)
	}
	return ref.Key, nil
}

func (f *FirebaseTree) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := f.client.NewRef(path).Update(ctx, fields); err != nil {
		return unavailable("update", path, err)
	}
	return nil
}

func (f *FirebaseTree) Delete(ctx context.Context, path string) error {
	if err := f.client.NewRef(path).Delete(ctx); err != nil {
		return unavailable("delete", path, err)
	}
	return nil
}
