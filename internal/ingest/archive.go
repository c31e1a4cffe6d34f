package ingest

import (
	"fmt"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/hollisb/airgrid/internal/models"
)

// ArchiveClient pulls historical reading archives (CSV files) from the
// network operator's anonymous FTP server.
type ArchiveClient struct {
	host string
}

func NewArchiveClient(host string) *ArchiveClient {
	return &ArchiveClient{host: host}
}

// FetchArchive downloads one archive file and parses it with the CSV loader.
// Returns the readings and the number of rows skipped during parsing.
func (c *ArchiveClient) FetchArchive(path string) ([]models.Reading, int, error) {
	conn, err := ftp.Dial(c.host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, 0, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, 0, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(path)
	if err != nil {
		return nil, 0, fmt.Errorf("ftp retr %s: %w", path, err)
	}
	defer resp.Close()

	readings, skipped, err := ParseCSV(resp)
	if err != nil {
		return nil, 0, fmt.Errorf("parse archive %s: %w", path, err)
	}
	return readings, skipped, nil
}
