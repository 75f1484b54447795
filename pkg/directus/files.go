package directus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

type FileOptions struct {
	Folder string // folder id
	Title  string
}

type File struct {
	ID               string `json:"id"`
	FilenameDisk     string `json:"filename_disk"`
	FilenameDownload string `json:"filename_download"`
	Title            string `json:"title"`
	Type             string `json:"type"`
	Folder           string `json:"folder"`
	Filesize         any    `json:"filesize"`
}

// UploadFile posts a multipart form to /files. Metadata parts must precede
// the file part or the CMS ignores them.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader, opts FileOptions) (*File, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if opts.Folder != "" {
		if err := mw.WriteField("folder", opts.Folder); err != nil {
			return nil, err
		}
	}
	if opts.Title != "" {
		if err := mw.WriteField("title", opts.Title); err != nil {
			return nil, err
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	send := func(tok string) (*File, error) {
		resp, err := c.request(ctx, http.MethodPost, "/files", nil, bytes.NewReader(buf.Bytes()), mw.FormDataContentType(), tok)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		var out File
		if _, err := decode(resp, http.MethodPost, "/files", &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	f, err := send(tok)
	if IsUnauthorized(err) && c.staticToken == "" {
		res, lerr := c.Login(ctx)
		if lerr != nil {
			return nil, lerr
		}
		return send(res.AccessToken)
	}
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	return f, nil
}
