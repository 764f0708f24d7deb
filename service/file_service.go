package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/doqment/docqa-be/utils"
)

// FileService persists uploaded document files under the upload directory,
// one file per document id.
type FileService struct {
	uploadDir string
}

func NewFileService(uploadDir string) *FileService {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		panic(err)
	}
	return &FileService{uploadDir: uploadDir}
}

// SaveUpload stores an uploaded file as {documentID}.pdf and returns its
// path. Only PDF uploads are accepted.
func (s *FileService) SaveUpload(file *multipart.FileHeader, documentID string) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	path := s.DocumentPath(documentID)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}

// SaveLocalFile copies a file from disk into the upload directory under the
// document's name. Used by the CLI indexing command.
func (s *FileService) SaveLocalFile(sourcePath, documentID string) (string, error) {
	return utils.CopyFile(sourcePath, s.uploadDir, documentID+".pdf")
}

// DocumentPath returns the stored location of a document's file.
func (s *FileService) DocumentPath(documentID string) string {
	return filepath.Join(s.uploadDir, utils.SanitizeFileName(documentID)+".pdf")
}

// Remove deletes a document's stored file. Missing files are not an error.
func (s *FileService) Remove(documentID string) error {
	err := os.Remove(s.DocumentPath(documentID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
