package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	config "github.com/mwenda27/chat_link/configs"
	"github.com/mwenda27/chat_link/models"
)

const uploadFolder = "chat_link_uploads"

// Attachment is what a successful upload hands back to message composition.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// UploadAttachment stores the file under a per-user, timestamped path and
// returns its public URL plus the original display name. Failures are
// returned to the caller; the pending send is theirs to retry.
func UploadAttachment(ctx context.Context, userID uuid.UUID, fileName string, file io.Reader) (*Attachment, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return nil, fmt.Errorf("initialize cloudinary: %w", err)
	}

	resp, err := cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID:     StoragePath(userID, fileName, time.Now()),
		Folder:       uploadFolder,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("upload attachment: %w", err)
	}

	return &Attachment{URL: resp.SecureURL, Name: fileName}, nil
}

// StoragePath builds the collision-resistant id {userId}/{millis}.{ext},
// namespaced under the uploading user.
func StoragePath(userID uuid.UUID, fileName string, now time.Time) string {
	path := fmt.Sprintf("%s/%d", userID, now.UnixMilli())
	if ext := strings.TrimPrefix(filepath.Ext(fileName), "."); ext != "" {
		path += "." + ext
	}
	return path
}

// KindForContentType maps an upload's MIME type onto the message kind.
func KindForContentType(contentType string) string {
	if strings.HasPrefix(contentType, "image/") {
		return models.MessageTypeImage
	}
	return models.MessageTypeFile
}
