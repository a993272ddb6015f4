package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"listingdesk/storage"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) Upload(ctx context.Context, bucket, p string, body io.Reader, contentType string) (string, error) {
	if m.failOn != "" && strings.HasSuffix(p, m.failOn) {
		return "", errors.New("boom")
	}
	data, _ := io.ReadAll(body)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+p] = data
	return "https://cdn.test/storage/v1/object/public/" + bucket + "/" + p, nil
}

func (m *memObjects) Remove(ctx context.Context, bucket string, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.objects, bucket+"/"+p)
	}
	return nil
}

func (m *memObjects) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectEntry
	for k, v := range m.objects {
		if strings.HasPrefix(k, bucket+"/"+prefix+"/") {
			out = append(out, storage.ObjectEntry{Path: strings.TrimPrefix(k, bucket+"/"), Size: int64(len(v))})
		}
	}
	return out, nil
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Front Yard (1).JPG":      "Front-Yard-1.jpg",
		"../../etc/passwd":        "passwd",
		`C:\photos\kitchen.png`:   "kitchen.png",
		"???.webp":                "file.webp",
		"plan--final__v2.pdf":     "plan-final__v2.pdf",
		"résumé de la maison.jpg": "r-sum-de-la-maison.jpg",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestObjectPath(t *testing.T) {
	p := ObjectPath("prop-1", "My House.png")
	parts := strings.SplitN(p, "/", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "prop-1", parts[0])
	assert.True(t, strings.HasSuffix(parts[1], "-My-House.png"))
	assert.Len(t, parts[1], 36+1+len("My-House.png"))
}

func TestPathFromURL(t *testing.T) {
	p, ok := PathFromURL(storage.BucketPropertyImages,
		"https://x.supabase.co/storage/v1/object/public/property-images/prop-1/abc-front.jpg")
	require.True(t, ok)
	assert.Equal(t, "prop-1/abc-front.jpg", p)

	_, ok = PathFromURL(storage.BucketFloorPlans, "https://elsewhere.test/img.jpg")
	assert.False(t, ok)
}

func TestUploadAll_DiscardsOnFailure(t *testing.T) {
	objects := newMemObjects()
	objects.failOn = "-second.jpg"
	u := NewUploader(objects)

	_, err := u.UploadAll(context.Background(), storage.BucketPropertyImages, "prop-1", []File{
		{Name: "first.jpg", Data: []byte("a")},
		{Name: "second.jpg", Data: []byte("b")},
	})
	require.Error(t, err)
	assert.Empty(t, objects.objects)
}

func TestUploadAll_RejectsPDFPhotos(t *testing.T) {
	u := NewUploader(newMemObjects())

	_, err := u.UploadAll(context.Background(), storage.BucketPropertyImages, "prop-1", []File{
		{Name: "plan.pdf", Data: []byte("%PDF")},
	})
	assert.ErrorIs(t, err, ErrNotAnImage)

	up, err := u.UploadAll(context.Background(), storage.BucketFloorPlans, "prop-1", []File{
		{Name: "plan.pdf", Data: []byte("%PDF")},
	})
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Contains(t, up[0].URL, "/floor-plans/prop-1/")
}

func TestPurgeProperty(t *testing.T) {
	objects := newMemObjects()
	u := NewUploader(objects)
	ctx := context.Background()

	_, err := u.UploadAll(ctx, storage.BucketPropertyImages, "prop-1", []File{{Name: "a.jpg", Data: []byte("a")}})
	require.NoError(t, err)
	_, err = u.UploadAll(ctx, storage.BucketFloorPlans, "prop-1", []File{{Name: "b.png", Data: []byte("b")}})
	require.NoError(t, err)
	_, err = u.UploadAll(ctx, storage.BucketPropertyImages, "prop-2", []File{{Name: "c.jpg", Data: []byte("c")}})
	require.NoError(t, err)

	require.NoError(t, u.PurgeProperty(ctx, "prop-1"))
	assert.Len(t, objects.objects, 1)
}
