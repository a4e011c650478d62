package cloudinary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	args := m.Called(ctx, file, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uploader.UploadResult), args.Error(1)
}

func TestImageStore_Upload(t *testing.T) {
	projectID := uuid.MustParse("3f1b8e22-6f0e-4c1d-9a3b-1c2d3e4f5a6b")
	m := new(mockUploader)
	store := newImageStore(m, "", nil)
	body := strings.NewReader("jpeg")

	m.On("Upload", mock.Anything, body, uploader.UploadParams{
		Folder:   "projects",
		PublicID: "project-3f1b8e22-6f0e-4c1d-9a3b-1c2d3e4f5a6b-roof-photo",
	}).Return(&uploader.UploadResult{
		PublicID:  "projects/project-3f1b8e22-6f0e-4c1d-9a3b-1c2d3e4f5a6b-roof-photo",
		SecureURL: "https://res.cloudinary.com/demo/image/upload/v1/projects/roof.jpg",
	}, nil)

	url, err := store.Upload(context.Background(), projectID, "Roof Photo.JPG", body)

	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/v1/projects/roof.jpg", url)
	m.AssertExpectations(t)
}

func TestImageStore_UploadErrors(t *testing.T) {
	projectID := uuid.New()

	transport := new(mockUploader)
	transport.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
	_, err := newImageStore(transport, "f", nil).Upload(context.Background(), projectID, "a.png", strings.NewReader("x"))
	assert.ErrorContains(t, err, "timeout")

	rejected := new(mockUploader)
	rejected.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(&uploader.UploadResult{
		Error: api.ErrorResp{Message: "Invalid image file"},
	}, nil)
	_, err = newImageStore(rejected, "f", nil).Upload(context.Background(), projectID, "a.png", strings.NewReader("x"))
	assert.ErrorContains(t, err, "Invalid image file")
}

func TestPublicID(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	tests := []struct {
		filename string
		want     string
	}{
		{"cover.png", "project-00000000-0000-0000-0000-000000000001-cover"},
		{`C:\Users\me\My Pic.jpeg`, "project-00000000-0000-0000-0000-000000000001-my-pic"},
		{"../../etc/passwd", "project-00000000-0000-0000-0000-000000000001-passwd"},
		{"", "project-00000000-0000-0000-0000-000000000001"},
		{"???.gif", "project-00000000-0000-0000-0000-000000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, publicID(id, tt.filename))
		})
	}
}
