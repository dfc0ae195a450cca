package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
)

type fakeFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size,string"`
	parent   string
	data     []byte
}

// fakeDrive serves the subset of the Drive v3 API used by DriveStorage.
type fakeDrive struct {
	mu    sync.Mutex
	files map[string]*fakeFile
	next  int
}

var (
	parentQuery  = regexp.MustCompile(`'((?:[^'\\]|\\.)*)' in parents`)
	nameQuery    = regexp.MustCompile(`name='((?:[^'\\]|\\.)*)'`)
	mimeEqQuery  = regexp.MustCompile(`mimeType='([^']*)'`)
	mimeNeqQuery = regexp.MustCompile(`mimeType!='([^']*)'`)
)

func unescape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\'`, `'`), `\\`, `\`)
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/files"):
		f.list(w, r.URL.Query().Get("q"))
	case r.Method == http.MethodGet && r.URL.Query().Get("alt") == "media":
		file, ok := f.files[path.Base(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(file.data)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/files"):
		meta, data := readUpload(r)
		f.next++
		file := &fakeFile{ID: fmt.Sprintf("id-%d", f.next), Name: meta.Name, MimeType: meta.MimeType, data: data, Size: int64(len(data))}
		if len(meta.Parents) > 0 {
			file.parent = meta.Parents[0]
		}
		f.files[file.ID] = file
		_ = json.NewEncoder(w).Encode(file)
	case r.Method == http.MethodPatch:
		file, ok := f.files[path.Base(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, data := readUpload(r)
		file.data, file.Size = data, int64(len(data))
		_ = json.NewEncoder(w).Encode(file)
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func (f *fakeDrive) list(w http.ResponseWriter, q string) {
	var parent, name, mimeEq, mimeNeq string
	if m := parentQuery.FindStringSubmatch(q); m != nil {
		parent = unescape(m[1])
	}
	if m := nameQuery.FindStringSubmatch(q); m != nil {
		name = unescape(m[1])
	}
	if m := mimeEqQuery.FindStringSubmatch(q); m != nil {
		mimeEq = m[1]
	}
	if m := mimeNeqQuery.FindStringSubmatch(q); m != nil {
		mimeNeq = m[1]
	}

	out := []*fakeFile{}
	for _, file := range f.files {
		if file.parent != parent || (name != "" && file.Name != name) {
			continue
		}
		if (mimeEq != "" && file.MimeType != mimeEq) || (mimeNeq != "" && file.MimeType == mimeNeq) {
			continue
		}
		out = append(out, file)
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"files": out})
}

func readUpload(r *http.Request) (drive.File, []byte) {
	var meta drive.File
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		_ = json.NewDecoder(r.Body).Decode(&meta)
		return meta, nil
	}

	reader := multipart.NewReader(r.Body, params["boundary"])
	var data []byte
	for i := 0; ; i++ {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		body, _ := io.ReadAll(part)
		if i == 0 {
			_ = json.Unmarshal(body, &meta)
		} else {
			data = body
		}
	}
	return meta, data
}

func newDriveStorage(t *testing.T) (*DriveStorage, *fakeDrive) {
	t.Helper()
	fake := &fakeDrive{files: map[string]*fakeFile{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	srv, err := drive.NewService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/drive/v3/"),
	)
	require.NoError(t, err)
	return NewDriveStorageWithService(srv, "root-folder"), fake
}

func TestDriveStorage_UploadListOpen(t *testing.T) {
	store, fake := newDriveStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UploadObject(ctx, "exports/run-1/decisions.csv", []byte("sku\nA\n")))
	require.NoError(t, store.UploadObject(ctx, "exports/run-1/exclusions.csv", []byte("sku,reason\n")))

	objects, err := store.ListObjects(ctx, "exports/run-1/")
	require.NoError(t, err)
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	assert.ElementsMatch(t, []string{"exports/run-1/decisions.csv", "exports/run-1/exclusions.csv"}, keys)

	objects, err = store.ListObjects(ctx, "exports/run-1/dec")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, int64(6), objects[0].Size)

	body, err := store.OpenObject(ctx, "exports/run-1/decisions.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "sku\nA\n", string(data))

	// two folders and two files
	assert.Len(t, fake.files, 4)
}

func TestDriveStorage_UploadReplacesExisting(t *testing.T) {
	store, fake := newDriveStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UploadObject(ctx, "demand.csv", []byte("v1")))
	require.NoError(t, store.UploadObject(ctx, "demand.csv", []byte("v2-longer")))
	assert.Len(t, fake.files, 1)

	body, err := store.OpenObject(ctx, "demand.csv")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "v2-longer", string(data))
}

func TestDriveStorage_Missing(t *testing.T) {
	store, _ := newDriveStorage(t)
	ctx := context.Background()

	_, err := store.OpenObject(ctx, "nowhere/demand.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "folder not found")

	_, err = store.OpenObject(ctx, "demand.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	assert.Error(t, store.UploadObject(ctx, "dir/", []byte("x")))
}

func TestSplitKeyAndEscape(t *testing.T) {
	dir, name := splitKey("/a/b/c.csv")
	assert.Equal(t, "a/b", dir)
	assert.Equal(t, "c.csv", name)

	dir, name = splitKey("c.csv")
	assert.Equal(t, "", dir)
	assert.Equal(t, "c.csv", name)

	assert.Equal(t, `it\'s`, escape("it's"))
}

func TestNew_Backends(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.ErrorContains(t, err, "unsupported storage backend")

	_, err = New(context.Background(), config.StorageConfig{Backend: "gdrive"})
	assert.ErrorContains(t, err, "credentials")

	store, err := New(context.Background(), config.StorageConfig{Endpoint: "s3.example.com", AccessKey: "ak", SecretKey: "sk", Bucket: "b"})
	require.NoError(t, err)
	assert.IsType(t, &S3Client{}, store)
}
