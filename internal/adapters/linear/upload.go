package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// RequestUpload asks Linear for signed upload credentials for a file.
func (c *Client) RequestUpload(ctx context.Context, contentType, filename string, size int) (*UploadFile, error) {
	mutation := `
		mutation FileUpload($contentType: String!, $size: Int!, $filename: String!) {
			fileUpload(contentType: $contentType, size: $size, filename: $filename) {
				success
				uploadFile { uploadUrl assetUrl headers { key value } }
			}
		}
	`

	var result struct {
		FileUpload struct {
			Success    bool        `json:"success"`
			UploadFile *UploadFile `json:"uploadFile"`
		} `json:"fileUpload"`
	}

	if err := c.Execute(ctx, mutation, map[string]interface{}{
		"contentType": contentType,
		"size":        size,
		"filename":    filename,
	}, &result); err != nil {
		return nil, fmt.Errorf("failed to get upload credentials: %w", err)
	}
	if !result.FileUpload.Success || result.FileUpload.UploadFile == nil {
		return nil, fmt.Errorf("failed to get upload credentials: fileUpload reported failure")
	}

	return result.FileUpload.UploadFile, nil
}

// PutFile uploads data to the signed URL with the headers Linear requires.
func (c *Client) PutFile(ctx context.Context, upload *UploadFile, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, upload.UploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	for _, h := range upload.Headers {
		req.Header.Set(h.Key, h.Value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload failed: %s", resp.Status)
	}
	return nil
}

// CreateAttachment links an uploaded asset URL to an issue.
func (c *Client) CreateAttachment(ctx context.Context, issueID, url, title string) (*Attachment, error) {
	mutation := `
		mutation AttachmentCreate($input: AttachmentCreateInput!) {
			attachmentCreate(input: $input) {
				success
				attachment { id url title }
			}
		}
	`

	var result struct {
		AttachmentCreate struct {
			Success    bool        `json:"success"`
			Attachment *Attachment `json:"attachment"`
		} `json:"attachmentCreate"`
	}

	if err := c.Execute(ctx, mutation, map[string]interface{}{
		"input": map[string]interface{}{
			"issueId": issueID,
			"url":     url,
			"title":   title,
		},
	}, &result); err != nil {
		return nil, err
	}
	if !result.AttachmentCreate.Success || result.AttachmentCreate.Attachment == nil {
		return nil, fmt.Errorf("attachmentCreate reported failure")
	}

	return result.AttachmentCreate.Attachment, nil
}
