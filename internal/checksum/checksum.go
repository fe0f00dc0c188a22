package checksum

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// FileHash возвращает SHA256 содержимого файла в hex
func (g *Generator) FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// VerifyCopy проверяет, что dst побайтно совпадает с src
func (g *Generator) VerifyCopy(src, dst string) error {
	want, err := g.FileHash(src)
	if err != nil {
		return err
	}
	got, err := g.FileHash(dst)
	if err != nil {
		return err
	}
	if want != got {
		return fmt.Errorf("checksum mismatch: %s (%s) != %s (%s)", dst, got[:12], src, want[:12])
	}
	return nil
}
