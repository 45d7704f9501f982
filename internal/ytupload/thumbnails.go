package ytupload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
)

var thumbnailEndpoint = "https://www.googleapis.com/upload/youtube/v3/thumbnails/set"

// SetThumbnail uploads imagePath as the custom thumbnail for videoID.
func (u *Uploader) SetThumbnail(ctx context.Context, videoID, imagePath string) error {
	if videoID == "" {
		return errors.New("ytupload: set thumbnail requires a video id")
	}
	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("ytupload: open thumbnail: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("ytupload: stat thumbnail: %w", err)
	}

	token, err := u.Tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		thumbnailEndpoint+"?videoId="+url.QueryEscape(videoID), f)
	if err != nil {
		return fmt.Errorf("ytupload: create thumbnail request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "image/png")

	resp, err := u.client().Do(req)
	if err != nil {
		return fmt.Errorf("ytupload: thumbnail request: %w", err)
	}
	defer resp.Body.Close()
	drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ytupload: thumbnail status %d", resp.StatusCode)
	}
	return nil
}
