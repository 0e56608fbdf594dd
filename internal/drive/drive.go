// Package drive mirrors delivered documents into Google Drive folders.
package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"DocRelay/internal/config"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Client is safe to construct without credentials; it then reports itself
// as unconfigured and every call fails.
type Client struct {
	svc    *gdrive.Service
	rootID string
	log    *zap.Logger
}

func New(ctx context.Context, cfg config.DriveConfig, log *zap.Logger) (*Client, error) {
	c := &Client{rootID: cfg.RootFolderID, log: log}
	if !cfg.Enabled() {
		log.Info("google drive not configured")
		return c, nil
	}

	svc, err := gdrive.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(gdrive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	c.svc = svc
	return c, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.svc != nil
}

var errNotConfigured = errors.New("google drive is not configured")

// CreateFolder creates name under parentID, or under the configured root
// folder when parentID is empty.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	if !c.IsConfigured() {
		return "", errNotConfigured
	}

	folder := &gdrive.File{Name: name, MimeType: folderMimeType}
	if parentID == "" {
		parentID = c.rootID
	}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}

	created, err := c.svc.Files.Create(folder).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return created.Id, nil
}

// UploadFile stores content in folderID and returns the file's view link.
func (c *Client) UploadFile(ctx context.Context, folderID, fileName, mimeType string, content []byte) (string, error) {
	if !c.IsConfigured() {
		return "", errNotConfigured
	}

	f := &gdrive.File{Name: fileName, MimeType: mimeType, Parents: []string{folderID}}
	created, err := c.svc.Files.Create(f).
		Media(bytes.NewReader(content)).
		SupportsAllDrives(true).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", fileName, err)
	}
	return created.WebViewLink, nil
}

// ShareFolder grants read access to recipientEmail, or to anyone with the
// link when recipientEmail is empty, and returns the folder's view link.
func (c *Client) ShareFolder(ctx context.Context, folderID, recipientEmail string) (string, error) {
	if !c.IsConfigured() {
		return "", errNotConfigured
	}

	perm := &gdrive.Permission{Type: "anyone", Role: "reader"}
	if recipientEmail != "" {
		perm = &gdrive.Permission{Type: "user", Role: "reader", EmailAddress: recipientEmail}
	}

	call := c.svc.Permissions.Create(folderID, perm).SupportsAllDrives(true).Context(ctx)
	if recipientEmail != "" {
		call = call.SendNotificationEmail(false)
	}
	if _, err := call.Do(); err != nil {
		return "", fmt.Errorf("share folder %s: %w", folderID, err)
	}

	f, err := c.svc.Files.Get(folderID).
		SupportsAllDrives(true).
		Fields("webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("folder link %s: %w", folderID, err)
	}
	return f.WebViewLink, nil
}
