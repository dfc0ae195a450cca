package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveStorage implements ObjectStorage on a Google Drive folder. Keys are
// slash separated paths below the root folder, e.g. "exports/demand.csv".
type DriveStorage struct {
	srv    *drive.Service
	rootID string
}

var _ ObjectStorage = (*DriveStorage)(nil)

// NewDriveStorage authenticates with a service account key.
func NewDriveStorage(ctx context.Context, cfg config.StorageConfig) (*DriveStorage, error) {
	if strings.TrimSpace(cfg.DriveCredentialsJSON) == "" {
		return nil, fmt.Errorf("google drive credentials are required")
	}

	jwt, err := google.JWTConfigFromJSON([]byte(cfg.DriveCredentialsJSON), drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create drive client: %w", err)
	}

	return NewDriveStorageWithService(srv, cfg.DriveFolderID), nil
}

// NewDriveStorageWithService wraps an existing client. An empty rootID means
// the drive root.
func NewDriveStorageWithService(srv *drive.Service, rootID string) *DriveStorage {
	if rootID == "" {
		rootID = "root"
	}
	return &DriveStorage{srv: srv, rootID: rootID}
}

// ListObjects lists the files of one folder whose name starts with the last
// path element of prefix. Sub-folders are not descended into.
func (d *DriveStorage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	dir, namePrefix := splitKey(prefix)
	if strings.HasSuffix(prefix, "/") {
		dir, namePrefix = strings.Trim(prefix, "/"), ""
	}
	folderID, err := d.findFolder(ctx, dir, false)
	if err != nil {
		return nil, err
	}

	files, err := d.list(ctx, fmt.Sprintf("'%s' in parents and mimeType!='%s' and trashed=false", escape(folderID), folderMimeType))
	if err != nil {
		return nil, err
	}

	results := make([]ObjectInfo, 0, len(files))
	for _, f := range files {
		if !strings.HasPrefix(f.Name, namePrefix) {
			continue
		}
		results = append(results, ObjectInfo{Key: path.Join(dir, f.Name), Size: f.Size})
	}
	return results, nil
}

func (d *DriveStorage) OpenObject(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := d.findFile(ctx, key)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("object %s not found", key)
	}

	resp, err := d.srv.Files.Get(file.Id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("unable to download %s: %w", key, err)
	}
	return resp.Body, nil
}

// UploadObject creates missing folders along key and replaces the file when
// one with the same name already exists.
func (d *DriveStorage) UploadObject(ctx context.Context, key string, data []byte) error {
	dir, name := splitKey(key)
	if name == "" || strings.HasSuffix(key, "/") {
		return fmt.Errorf("object key %q has no file name", key)
	}
	folderID, err := d.findFolder(ctx, dir, true)
	if err != nil {
		return err
	}

	existing, err := d.fileIn(ctx, folderID, name)
	if err != nil {
		return err
	}

	media := googleapi.ContentType(contentType(name))
	if existing != nil {
		_, err = d.srv.Files.Update(existing.Id, &drive.File{}).Media(bytes.NewReader(data), media).Context(ctx).Do()
	} else {
		_, err = d.srv.Files.Create(&drive.File{Name: name, Parents: []string{folderID}}).Media(bytes.NewReader(data), media).Context(ctx).Do()
	}
	if err != nil {
		return fmt.Errorf("unable to upload %s: %w", key, err)
	}
	return nil
}

func (d *DriveStorage) findFile(ctx context.Context, key string) (*drive.File, error) {
	dir, name := splitKey(key)
	folderID, err := d.findFolder(ctx, dir, false)
	if err != nil {
		return nil, err
	}
	return d.fileIn(ctx, folderID, name)
}

func (d *DriveStorage) fileIn(ctx context.Context, folderID, name string) (*drive.File, error) {
	files, err := d.list(ctx, fmt.Sprintf("'%s' in parents and name='%s' and mimeType!='%s' and trashed=false",
		escape(folderID), escape(name), folderMimeType))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return files[0], nil
}

// findFolder walks dir from the root folder, creating missing folders when
// create is set.
func (d *DriveStorage) findFolder(ctx context.Context, dir string, create bool) (string, error) {
	currentID := d.rootID
	for _, folder := range strings.Split(dir, "/") {
		if folder == "" || folder == "." {
			continue
		}

		files, err := d.list(ctx, fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
			escape(currentID), escape(folder), folderMimeType))
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", folder, err)
		}

		if len(files) > 0 {
			currentID = files[0].Id
			continue
		}
		if !create {
			return "", fmt.Errorf("folder not found: %s", folder)
		}

		created, err := d.srv.Files.Create(&drive.File{
			Name:     folder,
			MimeType: folderMimeType,
			Parents:  []string{currentID},
		}).Fields("id").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("unable to create folder %s: %w", folder, err)
		}
		currentID = created.Id
	}
	return currentID, nil
}

func (d *DriveStorage) list(ctx context.Context, query string) ([]*drive.File, error) {
	var files []*drive.File
	err := d.srv.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, mimeType, size)").
		Pages(ctx, func(page *drive.FileList) error {
			files = append(files, page.Files...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}
	return files, nil
}

func splitKey(key string) (dir, name string) {
	key = strings.Trim(key, "/")
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}

func escape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}
