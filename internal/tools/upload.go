package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var contentTypes = map[string]string{
	".md":   "text/markdown",
	".txt":  "text/plain",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".json": "application/json",
	".csv":  "text/csv",
	".html": "text/html",
	".zip":  "application/zip",
}

// ContentType maps a filename extension to the MIME type sent to Linear.
func ContentType(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// resolvePath makes p absolute against the workspace directory.
func (s *Server) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.workspaceDir, p)
}

// UploadFile handles linear_upload_file: it requests signed credentials,
// PUTs the file to the signed URL and attaches the asset to the issue.
func (s *Server) UploadFile(ctx context.Context, _ *mcp.CallToolRequest, in UploadFileInput) (*mcp.CallToolResult, any, error) {
	path := s.resolvePath(in.FilePath)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return errorResult("File not found: %s", path), nil, nil
	}
	if err != nil {
		return errorResult("Error uploading file: %v", err), nil, nil
	}

	// Resolve first so a bad identifier doesn't leave an orphaned upload.
	issue, miss, err := s.resolve(ctx, in.Identifier, 0)
	if err != nil {
		return errorResult("Error uploading file: %v", err), nil, nil
	}
	if miss != nil {
		return miss, nil, nil
	}

	name := filepath.Base(path)
	contentType := ContentType(name)
	title := in.Title
	if title == "" {
		title = name
	}

	upload, err := s.api.RequestUpload(ctx, contentType, name, len(data))
	if err != nil {
		return errorResult("%v", err), nil, nil
	}
	if err := s.api.PutFile(ctx, upload, contentType, data); err != nil {
		return errorResult("Error uploading file: %v", err), nil, nil
	}
	if _, err := s.api.CreateAttachment(ctx, issue.ID, upload.AssetURL, title); err != nil {
		return errorResult("File uploaded but attachment creation failed: %v", err), nil, nil
	}

	s.logger.Info("attached file", "issue", in.Identifier, "file", name, "bytes", len(data))
	return textResult(fmt.Sprintf("Attached %q to %s.\nURL: %s", name, in.Identifier, upload.AssetURL)), nil, nil
}
