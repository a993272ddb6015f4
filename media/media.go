package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"listingdesk/logging"
	"listingdesk/storage"
)

const MaxFileSize = 50 * 1024 * 1024

var (
	ErrTooLarge    = errors.New("file exceeds 50MB")
	ErrNotAnImage  = errors.New("unsupported file type")
	unsafeFileChar = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	repeatedDash   = regexp.MustCompile(`-{2,}`)
)

// File is an upload held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReadFile loads a file from disk for upload.
func ReadFile(p string) (File, error) {
	f, err := os.Open(p)
	if err != nil {
		return File{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", p, err)
	}
	if len(data) > MaxFileSize {
		return File{}, fmt.Errorf("%s: %w", p, ErrTooLarge)
	}

	name := filepath.Base(p)
	return File{Name: name, ContentType: ContentType(name), Data: data}, nil
}

// SanitizeFilename keeps a filename safe to embed in an object path.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(name, path.Ext(name))

	base = unsafeFileChar.ReplaceAllString(base, "-")
	base = repeatedDash.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-.")
	if base == "" {
		base = "file"
	}
	if len(base) > 80 {
		base = base[:80]
	}
	ext = unsafeFileChar.ReplaceAllString(ext, "")
	return base + ext
}

// ObjectPath builds {propertyId}/{uniqueToken}-{sanitizedFilename}.
func ObjectPath(propertyID, filename string) string {
	return propertyID + "/" + uuid.NewString() + "-" + SanitizeFilename(filename)
}

// ContentType determines the MIME type from a filename.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Acceptable reports whether a content type can go in the given bucket.
// Floor plans also accept PDFs.
func Acceptable(bucket, contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	case "application/pdf":
		return bucket == storage.BucketFloorPlans
	}
	return false
}

// PathFromURL recovers the object path of a public URL in bucket.
func PathFromURL(bucket, publicURL string) (string, bool) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", false
	}
	marker := "/" + bucket + "/"
	i := strings.LastIndex(u.Path, marker)
	if i < 0 {
		return "", false
	}
	return u.Path[i+len(marker):], true
}

// Uploaded is one stored object.
type Uploaded struct {
	Path string
	URL  string
}

// Uploader stores listing media under the property's prefix.
type Uploader struct {
	objects storage.ObjectStore
}

func NewUploader(objects storage.ObjectStore) *Uploader {
	return &Uploader{objects: objects}
}

// UploadAll uploads files in order. If any upload fails, the ones already
// stored are removed again and the error is returned.
func (u *Uploader) UploadAll(ctx context.Context, bucket, propertyID string, files []File) ([]Uploaded, error) {
	out := make([]Uploaded, 0, len(files))
	for _, f := range files {
		ct := f.ContentType
		if ct == "" {
			ct = ContentType(f.Name)
		}
		if !Acceptable(bucket, ct) {
			u.discard(ctx, bucket, out)
			return nil, fmt.Errorf("%s: %w (%s)", f.Name, ErrNotAnImage, ct)
		}
		if len(f.Data) > MaxFileSize {
			u.discard(ctx, bucket, out)
			return nil, fmt.Errorf("%s: %w", f.Name, ErrTooLarge)
		}

		p := ObjectPath(propertyID, f.Name)
		publicURL, err := u.objects.Upload(ctx, bucket, p, bytes.NewReader(f.Data), ct)
		if err != nil {
			u.discard(ctx, bucket, out)
			return nil, fmt.Errorf("upload %s: %w", f.Name, err)
		}
		logging.Debugf("Media: uploaded %s/%s (%d bytes)", bucket, p, len(f.Data))
		out = append(out, Uploaded{Path: p, URL: publicURL})
	}
	return out, nil
}

// Delete removes objects by public URL, ignoring URLs outside the bucket.
func (u *Uploader) Delete(ctx context.Context, bucket string, urls ...string) error {
	var paths []string
	for _, raw := range urls {
		if p, ok := PathFromURL(bucket, raw); ok {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	return u.objects.Remove(ctx, bucket, paths)
}

// PurgeProperty removes every object under {propertyID}/ in both buckets.
func (u *Uploader) PurgeProperty(ctx context.Context, propertyID string) error {
	var errs []error
	for _, bucket := range []string{storage.BucketPropertyImages, storage.BucketFloorPlans} {
		entries, err := u.objects.List(ctx, bucket, propertyID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s: %w", bucket, err))
			continue
		}
		if len(entries) == 0 {
			continue
		}
		paths := make([]string, len(entries))
		for i, e := range entries {
			paths[i] = e.Path
		}
		if err := u.objects.Remove(ctx, bucket, paths); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", bucket, err))
			continue
		}
		logging.Infof("Media: purged %d objects from %s/%s", len(paths), bucket, propertyID)
	}
	return errors.Join(errs...)
}

func (u *Uploader) discard(ctx context.Context, bucket string, uploaded []Uploaded) {
	if len(uploaded) == 0 {
		return
	}
	paths := make([]string, len(uploaded))
	for i, up := range uploaded {
		paths[i] = up.Path
	}
	if err := u.objects.Remove(ctx, bucket, paths); err != nil {
		logging.Warnf("Media: failed to discard %d partial uploads: %v", len(paths), err)
	}
}
