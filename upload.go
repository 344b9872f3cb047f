package s3lite

import (
	"context"
	"mime"
	"os"
	"path/filepath"
)

// UploadObject uploads the file at filePath as bucketName/objectName,
// dispatching through PutObject so large files take the multipart path.
// When opts.ContentType is empty it is inferred from the file extension.
func (c *Client) UploadObject(ctx context.Context, bucketName, objectName, filePath string, opts PutObjectOptions) (UploadInfo, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return UploadInfo{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return UploadInfo{}, err
	}
	if st.IsDir() {
		return UploadInfo{}, ErrInvalidArgument("s3lite: " + filePath + " is a directory")
	}

	if opts.ContentType == "" {
		if ct := mime.TypeByExtension(filepath.Ext(filePath)); ct != "" {
			opts.ContentType = ct
		}
	}

	return c.PutObject(ctx, bucketName, objectName, f, st.Size(), opts)
}
